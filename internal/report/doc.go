// Package report renders the upload and result pages and the printable PDF
// report. Templates are embedded in the binary.
package report
