package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// RecordsToJSON renders records as an array of {key: value} rows. Graph
// entities become maps and temporal values ISO-8601 strings.
func RecordsToJSON(records []*neo4j.Record) (string, error) {
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			if i < len(record.Values) {
				row[key] = toJSONValue(record.Values[i])
			}
		}
		rows = append(rows, row)
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize records: %w", err)
	}
	return string(out), nil
}

func toJSONValue(v any) any {
	switch t := v.(type) {
	case dbtype.Node:
		return nodeToMap(t)
	case dbtype.Relationship:
		return relationshipToMap(t)
	case dbtype.Path:
		nodes := make([]any, 0, len(t.Nodes))
		for _, n := range t.Nodes {
			nodes = append(nodes, nodeToMap(n))
		}
		rels := make([]any, 0, len(t.Relationships))
		for _, r := range t.Relationships {
			rels = append(rels, relationshipToMap(r))
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toJSONValue(item)
		}
		return out
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case dbtype.Date:
		return t.Time().Format(time.DateOnly)
	case dbtype.LocalDateTime:
		return t.Time().Format("2006-01-02T15:04:05.999999999")
	case dbtype.LocalTime:
		return t.Time().Format("15:04:05.999999999")
	case dbtype.Time:
		return t.Time().Format("15:04:05.999999999Z07:00")
	case dbtype.Duration:
		return t.String()
	case dbtype.Point2D:
		return map[string]any{"srid": t.SpatialRefId, "x": t.X, "y": t.Y}
	case dbtype.Point3D:
		return map[string]any{"srid": t.SpatialRefId, "x": t.X, "y": t.Y, "z": t.Z}
	default:
		return v
	}
}

func nodeToMap(n dbtype.Node) map[string]any {
	return map[string]any{
		"elementId":  n.ElementId,
		"labels":     n.Labels,
		"properties": toJSONValue(n.Props),
	}
}

func relationshipToMap(r dbtype.Relationship) map[string]any {
	return map[string]any{
		"elementId":      r.ElementId,
		"type":           r.Type,
		"startElementId": r.StartElementId,
		"endElementId":   r.EndElementId,
		"properties":     toJSONValue(r.Props),
	}
}
