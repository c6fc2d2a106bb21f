package cluster

// ClusteringError reports a failure of the clustering algorithm itself, such as
// non-finite input or an impossible cluster count.
type ClusteringError struct {
	Reason string
	Err    error
}

func (e *ClusteringError) Error() string {
	if e.Err != nil {
		return "clustering failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "clustering failed: " + e.Reason
}

func (e *ClusteringError) Unwrap() error { return e.Err }
