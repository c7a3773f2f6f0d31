package main

// Exit codes per spec.md §6: 0 success, distinct non-zero codes per
// startup-failure class so a supervisor can branch on why the process
// died without scraping log text.
const (
	exitOK                 = 0
	exitConfigError        = 2
	exitCapabilityMissing  = 3
	exitPermissionDenied   = 4
	exitPortBindError      = 5
)
