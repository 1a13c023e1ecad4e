package services

// CanSubmit reports whether an identity with prior submissions to a run may
// submit again under a per-user cap. The store re-checks the same condition
// inside the insert transaction; this result is for display and fast rejects.
func CanSubmit(priorSubmissionCount, maxSubmissionsPerUser int) bool {
	return priorSubmissionCount < maxSubmissionsPerUser
}
