// Package grievance builds and submits intake records: incoming
// grievances, outgoing feedback and unanswered feedback calls.
package grievance

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"

	"gopkg.in/yaml.v3"

	"callcenter/internal/api"
)

//go:embed master.yaml
var fallbackMasterYAML []byte

// masterFetchedMessage is the only message for which the master-data
// response is used as-is.
const masterFetchedMessage = "Fetched Successfully!"

// ErrInvalidSelection is returned when a role, query type or district name
// is not in the master data.
var ErrInvalidSelection = errors.New("Invalid role, query type, or district selected.")

// Master is the set of lookup tables behind the form selectors.
type Master struct {
	Roles      []api.Role
	QueryTypes []api.QueryType
	Districts  []api.District
}

// Selection is a resolved set of master-data ids.
type Selection struct {
	RoleID      int64
	QueryTypeID int64
	DistrictID  int64
}

// FallbackMaster returns the built-in tables.
func FallbackMaster() (*Master, error) {
	var data api.MasterData
	if err := yaml.Unmarshal(fallbackMasterYAML, &data); err != nil {
		return nil, fmt.Errorf("parse fallback master data: %w", err)
	}
	return newMaster(&data), nil
}

func newMaster(data *api.MasterData) *Master {
	return &Master{Roles: data.Role, QueryTypes: data.QueryType, Districts: data.District}
}

// LoadMaster fetches master data, falling back to the built-in tables when
// the call fails or the backend does not report a successful fetch. The
// bool reports whether the fallback was used.
func LoadMaster(ctx context.Context, client *api.Client) (*Master, bool, error) {
	resp, err := client.GetMasterData(ctx)
	if err == nil && resp.Message == masterFetchedMessage && resp.Data != nil {
		return newMaster(resp.Data), false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		log.Printf("⚠️  Failed to fetch master data, using built-in tables: %v\n", err)
	}

	m, ferr := FallbackMaster()
	if ferr != nil {
		return nil, false, ferr
	}
	return m, true, nil
}

// ResolveRole returns the id of the role named name.
func (m *Master) ResolveRole(name string) (int64, bool) {
	for _, r := range m.Roles {
		if r.Name == name {
			return int64(r.ID), true
		}
	}
	return 0, false
}

// ResolveQueryType returns the id of the query type named name.
func (m *Master) ResolveQueryType(name string) (int64, bool) {
	for _, q := range m.QueryTypes {
		if q.Name == name {
			return int64(q.ID), true
		}
	}
	return 0, false
}

// ResolveDistrict returns the id of the district named name.
func (m *Master) ResolveDistrict(name string) (int64, bool) {
	for _, d := range m.Districts {
		if d.Name == name {
			return int64(d.ID), true
		}
	}
	return 0, false
}

// Resolve looks up all three names at once.
func (m *Master) Resolve(role, queryType, district string) (Selection, error) {
	roleID, okRole := m.ResolveRole(role)
	queryTypeID, okQuery := m.ResolveQueryType(queryType)
	districtID, okDistrict := m.ResolveDistrict(district)
	if !okRole || !okQuery || !okDistrict {
		return Selection{}, ErrInvalidSelection
	}
	return Selection{RoleID: roleID, QueryTypeID: queryTypeID, DistrictID: districtID}, nil
}

// RoleNames lists role names in master order.
func (m *Master) RoleNames() []string {
	out := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		out = append(out, r.Name)
	}
	return out
}
