// Package models contains the GORM persistence models for the ledger tables.
// Domain entities stay free of ORM tags; each model maps to and from its
// domain type with ToDomain and a ...FromDomain constructor.
package models
