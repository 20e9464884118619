package isaias

import (
	"github.com/reedan88/Isaias/internal/adapters/ooinet"
	"github.com/reedan88/Isaias/internal/domain"
)

type (
	// SearchQuery narrows an inventory search by array, node and instrument.
	SearchQuery = ooinet.SearchQuery
	// DatasetRef is one instrument found by Search.
	DatasetRef = domain.DatasetRef
	// Deployment is one deployment of an instrument.
	Deployment = domain.Deployment
	// StreamInfo is one method/stream pair of an instrument.
	StreamInfo = domain.StreamInfo
	// ParameterInfo is one parameter of an instrument's metadata.
	ParameterInfo = domain.ParameterInfo
)

// AllDeployments asks Client.Deployments for every deployment.
const AllDeployments = ooinet.AllDeployments

// ParseRefDes splits "CP01CNSM-SBD11-06-METBKA000" into its parts.
func ParseRefDes(refdes string) (InstrumentRef, error) {
	return domain.ParseRefDes(refdes)
}

// ProcessedOnly keeps the parameters whose data level is 1.
func ProcessedOnly(params []ParameterInfo, levels map[string]int) []ParameterInfo {
	return ooinet.ProcessedOnly(params, levels)
}
