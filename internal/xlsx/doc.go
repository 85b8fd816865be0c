// Package xlsx decodes the first worksheet of an Office Open XML spreadsheet
// package into a header/row table.
//
// The decoder works directly on the package parts and uses no spreadsheet
// library. A call flows through five stages:
//
//  1. [OpenPackage] opens the zip container and locates the worksheet part
//     (first entry named xl/worksheets/sheet*.xml) and the optional shared
//     string part (xl/sharedStrings.xml).
//  2. [ParseSharedStrings] turns the shared string part into an indexed list.
//  3. [ParseWorksheet] streams the worksheet markup into a sparse [Grid]
//     keyed by [CellAddress], resolving shared string references.
//  4. [Assemble] orders the used columns numerically, takes row 1 as headers
//     and rebuilds every following row up to the highest row observed.
//  5. [Read] wires the stages together and returns a [Table].
//
// Every stage is a pure function of its input. Nothing is cached between
// calls, so concurrent calls need no locking.
//
// # Errors
//
// All failures are returned as *[Error] carrying a [Kind]. Callers branch on
// the kind with errors.Is against the sentinels:
//
//	table, err := xlsx.ReadBytes(data)
//	switch {
//	case errors.Is(err, xlsx.ErrMissingWorksheet):
//	    // not a spreadsheet we can read
//	case errors.Is(err, xlsx.ErrSharedStringIndex):
//	    // corrupt cell references
//	}
//
// No partial table is ever returned alongside an error.
package xlsx
