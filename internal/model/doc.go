// Package model defines the tenant → cloud region → service → config tree,
// its flat record form keyed by "tenant#region#service#config", and the
// conversions between the two.
package model
