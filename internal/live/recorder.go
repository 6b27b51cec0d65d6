package live

// Recorder receives coordinator metrics. *metrics.LiveMetrics satisfies it.
type Recorder interface {
	ReadingRecorded()
	GraphRebuilt()
	RefreshError(query string)
	RenderError(renderer string)
	QueueDepth(n int)
	DuplicateSuppressed()
}

type noopRecorder struct{}

func (noopRecorder) ReadingRecorded()     {}
func (noopRecorder) GraphRebuilt()        {}
func (noopRecorder) RefreshError(string)  {}
func (noopRecorder) RenderError(string)   {}
func (noopRecorder) QueueDepth(int)       {}
func (noopRecorder) DuplicateSuppressed() {}
