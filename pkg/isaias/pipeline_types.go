package isaias

import (
	"github.com/reedan88/Isaias/internal/adapters/ooinet"
	"github.com/reedan88/Isaias/internal/app/pipeline"
	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// Dataset is the time-indexed result of assembling a THREDDS catalog.
type Dataset = domain.Dataset

// Variable is one measurement column of a Dataset.
type Variable = domain.Variable

// RequestDescriptor is everything needed to issue one asynchronous data request.
type RequestDescriptor = domain.RequestDescriptor

// InstrumentRef names an instrument by array, node and sensor.
type InstrumentRef = domain.InstrumentRef

// Exclusions are substrings that drop catalog entries.
type Exclusions = domain.Exclusions

// JobHandle is the THREDDS URL returned for an asynchronous request.
type JobHandle = domain.JobHandle

// Result is what one target produced.
type Result = pipeline.Result

// DataRequester submits asynchronous data requests (OOINet M2M by default).
type DataRequester = ports.DataRequester

// StatusChecker probes a job's status.txt.
type StatusChecker = ports.StatusChecker

// CatalogFetcher lists the dataset entries of a THREDDS catalog.
type CatalogFetcher = ports.CatalogFetcher

// DatasetOpener reads one remote file.
type DatasetOpener = ports.DatasetOpener

// VocabularyLookup resolves an instrument's location name.
type VocabularyLookup = ports.VocabularyLookup

// FileFetcher copies catalog entries to disk.
type FileFetcher = ports.FileFetcher

// Transformer derives variables (wind speed, unit conversion) after assembly.
type Transformer = ports.Transformer

// Sink persists assembled datasets to any downstream system.
type Sink = ports.Sink

// Journal records issued jobs so an interrupted run can resume polling.
type Journal = ports.Journal

// JobID identifies a journal record.
type JobID = ports.JobID

// JobRecord is one issued data request as stored in the journal.
type JobRecord = ports.JobRecord

// JournalStats exposes journal metadata for observability.
type JournalStats = ports.JournalStats

// ArtifactStore keeps rendered plots and downloaded files.
type ArtifactStore = ports.ArtifactStore

// Observability emits metrics and logs about requests, polling and sinks.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Clock is the time source used by the poller and the journal.
type Clock = ports.Clock

// Client talks to the OOINet M2M API and the THREDDS server.
type Client = ooinet.Client

// RequestError is returned when OOINet answers a request with a non-2xx status.
type RequestError = ooinet.RequestError

// Poll and assembly errors callers commonly test for.
var (
	ErrPollTimeout      = pipeline.ErrPollTimeout
	ErrNoFiles          = pipeline.ErrNoFiles
	ErrNoTimeVariable   = domain.ErrNoTimeVariable
	ErrInvalidRefDes    = domain.ErrInvalidRefDes
	ErrInvalidExclusion = domain.ErrInvalidExclusion
	ErrNotNetCDF        = domain.ErrNotNetCDF
)
