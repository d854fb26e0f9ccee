// Package roster bulk-loads students from a YAML file.
//
// A roster looks like:
//
//	students:
//	  - id: "CS-101"
//	    name: Asha Rao
//	    dob: "2003-04-12"
//	    course: B.Tech
//	    semester: 3
//	  - id: "CS-102"
//	    name: Ravi Kumar
//	    section: B.Tech - 5
//
// Documents are checked against the embedded CUE definition in roster.cue
// before any row is written. Unknown keys are rejected.
package roster
