package point

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/invoicedex/internal/db"
	"github.com/kailas-cloud/invoicedex/internal/domain/invoice"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
	"github.com/kailas-cloud/invoicedex/internal/vector"
)

// Hash field names of a stored point.
const (
	fieldPayload = "payload"
	fieldVector  = "__vector"
	vectorAlias  = "vector"
)

// toRecord flattens a point into the backend-neutral record.
func toRecord(p *dompoint.Point) (*db.PointRecord, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &db.PointRecord{
		ID:      p.ID,
		Vector:  p.Vector,
		Payload: payload,
		Tags:    p.Tags(),
		Numbers: p.Numbers(),
	}, nil
}

// hashFields lays a record out as an HSET field map.
func hashFields(r *db.PointRecord) map[string]string {
	m := make(map[string]string, 2+len(r.Tags)+len(r.Numbers))
	m[fieldPayload] = string(r.Payload)
	m[fieldVector] = string(vector.Encode(r.Vector))
	for k, v := range r.Tags {
		m[k] = v
	}
	for k, v := range r.Numbers {
		m[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return m
}

func toHit(id string, score float64, payload []byte) (dompoint.Hit, error) {
	var inv invoice.Invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return dompoint.Hit{}, fmt.Errorf("point %s payload: %w", id, err)
	}
	return dompoint.Hit{ID: id, Score: score, Payload: inv}, nil
}
