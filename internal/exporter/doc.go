// Package exporter writes consolidated attendance figures out of the process.
//
// Four forms are supported:
//
//	WriteText      plain "label value" listing used for review
//	CSVWriter      dashboard CSV stamped with the school and year
//	WriteTemplate  fills the apportionment worksheet of an existing workbook
//	RenderHTML     a standalone HTML summary of a run
//
// Every writer orders keys by the program order it is given, then month, then
// age band.
package exporter
