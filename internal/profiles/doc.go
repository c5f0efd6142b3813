// Package profiles saves program boundary settings so a reviewed set of
// boundaries can be re-applied to later exports.
//
// Each profile is one JSON document in the profiles directory, named after
// the profile:
//
//	{
//	  "name": "fall-2025",
//	  "description": "after manual fix of Prog_K",
//	  "created_date": "2025-10-01T08:00:00Z",
//	  "program_boundaries": {"Prog_C": {"start": 12, "stop": 40}, "Prog_J": {"start": null, "stop": null}},
//	  "program_mappings": {"Program C Charter Resident": "Prog_C"}
//	}
//
// Export and Import move a single set of boundaries between installations.
package profiles
