package exposure

// NoDataOnDetectorError reports a WCS solution that places no data on the
// detector, e.g. a pointing whose sources all fall outside the subarray.
// Batch callers exit with Code so schedulers can tell an empty pointing
// from a pipeline failure.
type NoDataOnDetectorError struct {
	Msg string
}

func (e *NoDataOnDetectorError) Error() string {
	if e.Msg == "" {
		return "WCS solution indicates that there is no data on the detector"
	}
	return e.Msg
}

// Code is the process exit status for an empty pointing.
func (e *NoDataOnDetectorError) Code() int { return 64 }
