package database

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsToJSON(t *testing.T) {
	created := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	records := []*neo4j.Record{
		{
			Keys: []string{"records"},
			Values: []any{
				[]any{
					map[string]any{"__id": "r1", "name": "Ada", "createdAt": created},
				},
			},
		},
	}

	out, err := RecordsToJSON(records)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)

	items := rows[0]["records"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "Ada", first["name"])
	assert.Equal(t, "2024-05-17T10:30:00Z", first["createdAt"])
}

func TestRecordsToJSON_GraphEntities(t *testing.T) {
	records := []*neo4j.Record{
		{
			Keys: []string{"n", "r", "d"},
			Values: []any{
				dbtype.Node{ElementId: "4:x:1", Labels: []string{"__RECORD__", "Person"}, Props: map[string]any{"name": "Ada"}},
				dbtype.Relationship{ElementId: "5:x:1", Type: "KNOWS", StartElementId: "4:x:1", EndElementId: "4:x:2"},
				dbtype.Date(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
			},
		},
	}

	out, err := RecordsToJSON(records)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))

	node := rows[0]["n"].(map[string]any)
	assert.Equal(t, "4:x:1", node["elementId"])
	assert.Equal(t, []any{"__RECORD__", "Person"}, node["labels"])
	assert.Equal(t, map[string]any{"name": "Ada"}, node["properties"])

	rel := rows[0]["r"].(map[string]any)
	assert.Equal(t, "KNOWS", rel["type"])
	assert.Equal(t, map[string]any{}, rel["properties"])

	assert.Equal(t, "2024-01-02", rows[0]["d"])
}

func TestRecordsToJSON_Empty(t *testing.T) {
	out, err := RecordsToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
