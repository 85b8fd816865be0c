// Package payroll imports monthly salary workbooks and answers payslip
// lookups.
//
// An import decodes the first worksheet of an uploaded workbook with
// package xlsx, matches each row to an employee by name and the last six
// digits of the bank card, and replaces every record stored for that month.
// A lookup finds one employee's record for a month and lays its items out
// in the column order of the sheet they came from.
//
// Persistence is behind the [Store] interface; see internal/store for the
// JSON-file and PostgreSQL implementations.
package payroll
