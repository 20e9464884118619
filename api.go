package isaias

import (
	base "github.com/reedan88/Isaias/pkg/isaias"
)

// Re-exported errors for convenience.
var (
	ErrPollTimeout       = base.ErrPollTimeout
	ErrNoFiles           = base.ErrNoFiles
	ErrNoTimeVariable    = base.ErrNoTimeVariable
	ErrInvalidRefDes     = base.ErrInvalidRefDes
	ErrNoCredentials     = base.ErrNoCredentials
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/reedan88/Isaias directly.
type (
	Config            = base.Config
	TargetConfig      = base.TargetConfig
	PlotConfig        = base.PlotConfig
	SeriesConfig      = base.SeriesConfig
	PollPolicy        = base.PollPolicy
	RetryPolicy       = base.RetryPolicy
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	SourceOption      = base.SourceOption
	OutputOption      = base.OutputOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Report            = base.Report
	PlotOutput        = base.PlotOutput
	Result            = base.Result
	Dataset           = base.Dataset
	Variable          = base.Variable
	RequestDescriptor = base.RequestDescriptor
	JobHandle         = base.JobHandle
	Client            = base.Client
	RequestError      = base.RequestError
	DataRequester     = base.DataRequester
	StatusChecker     = base.StatusChecker
	CatalogFetcher    = base.CatalogFetcher
	DatasetOpener     = base.DatasetOpener
	VocabularyLookup  = base.VocabularyLookup
	FileFetcher       = base.FileFetcher
	Sink              = base.Sink
	Transformer       = base.Transformer
	Journal           = base.Journal
	JournalStats      = base.JournalStats
	ArtifactStore     = base.ArtifactStore
	Observability     = base.Observability
	Clock             = base.Clock
	DatasetHandler    = base.DatasetHandler
	Delivery          = base.Delivery
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func SourceRequester(r DataRequester) SourceOption {
	return base.SourceRequester(r)
}

func SourceOpener(op DatasetOpener) SourceOption {
	return base.SourceOpener(op)
}

func SourceJournal(j Journal) SourceOption {
	return base.SourceJournal(j)
}

func SourceObservability(obs Observability) SourceOption {
	return base.SourceObservability(obs)
}

func OutputSink(s Sink) OutputOption {
	return base.OutputSink(s)
}

func OutputTransformer(tr Transformer) OutputOption {
	return base.OutputTransformer(tr)
}

func OutputArtifacts(a ArtifactStore) OutputOption {
	return base.OutputArtifacts(a)
}

func OutputCallback(name string, fn DatasetHandler) OutputOption {
	return base.OutputCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithRequester(r DataRequester) RuntimeOption {
	return base.WithRequester(r)
}

func WithOpener(op DatasetOpener) RuntimeOption {
	return base.WithOpener(op)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithJournal(j Journal) RuntimeOption {
	return base.WithJournal(j)
}

func WithArtifactStore(a ArtifactStore) RuntimeOption {
	return base.WithArtifactStore(a)
}

func WithTransformer(tr Transformer) RuntimeOption {
	return base.WithTransformer(tr)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

// Sink adapters.
func NewCallbackSink(name string, fn DatasetHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Delivery, func()) {
	return base.NewChannelSink(name, buffer)
}
