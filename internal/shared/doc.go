// Package shared holds helpers used by more than one layer of the service.
//
// The testutil subpackage provides a capturing slog handler and sales history
// fixtures (tables, CSV bytes and XLSX workbooks) for package tests.
package shared
