package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type schemaSnapshot struct {
	nodeProperties map[string][]string
	relationships  []string
}

func (s *schemaSnapshot) String() string {
	var builder strings.Builder

	builder.WriteString("Node properties:\n")
	labels := make([]string, 0, len(s.nodeProperties))
	for label := range s.nodeProperties {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		builder.WriteString(fmt.Sprintf("%s {%s}\n", label, strings.Join(s.nodeProperties[label], ", ")))
	}

	builder.WriteString("The relationships:\n")
	for _, rel := range s.relationships {
		builder.WriteString(rel)
		builder.WriteString("\n")
	}

	return builder.String()
}

const (
	nodePropertiesQuery = `
		CALL db.schema.nodeTypeProperties()
		YIELD nodeLabels, propertyName, propertyTypes
		RETURN nodeLabels, propertyName, propertyTypes
	`

	relationshipPatternsQuery = `
		CALL db.schema.visualization()
		YIELD nodes, relationships
		RETURN nodes, relationships
	`
)

func readSchema(ctx context.Context, session neo4j.SessionWithContext) (*schemaSnapshot, error) {
	snapshot := &schemaSnapshot{nodeProperties: make(map[string][]string)}

	result, err := session.Run(ctx, nodePropertiesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read node properties: %w", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		labels, _ := record.Get("nodeLabels")
		property, _ := record.Get("propertyName")
		types, _ := record.Get("propertyTypes")

		label := strings.Join(toStrings(labels), ":")
		name, _ := property.(string)
		if label == "" || name == "" {
			continue
		}
		snapshot.nodeProperties[label] = append(snapshot.nodeProperties[label],
			fmt.Sprintf("%s: %s", name, strings.Join(toStrings(types), "|")))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node properties: %w", err)
	}

	result, err = session.Run(ctx, relationshipPatternsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read relationships: %w", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		nodes, _ := record.Get("nodes")
		relationships, _ := record.Get("relationships")
		snapshot.relationships = append(snapshot.relationships,
			relationshipPatterns(toSlice(nodes), toSlice(relationships))...)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate relationships: %w", err)
	}

	return snapshot, nil
}

// relationshipPatterns renders the schema graph returned by
// db.schema.visualization as sorted (:Source)-[:TYPE]->(:Target) lines.
func relationshipPatterns(nodes, relationships []any) []string {
	labels := make(map[string]string, len(nodes))
	for _, item := range nodes {
		if node, ok := item.(neo4j.Node); ok {
			labels[node.ElementId] = strings.Join(node.Labels, ":")
		}
	}

	seen := make(map[string]bool, len(relationships))
	patterns := make([]string, 0, len(relationships))
	for _, item := range relationships {
		rel, ok := item.(neo4j.Relationship)
		if !ok {
			continue
		}
		source, target := labels[rel.StartElementId], labels[rel.EndElementId]
		if source == "" || target == "" {
			continue
		}
		pattern := fmt.Sprintf("(:%s)-[:%s]->(:%s)", source, rel.Type, target)
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}
	sort.Strings(patterns)
	return patterns
}

func toSlice(value any) []any {
	items, _ := value.([]any)
	return items
}

func toStrings(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// formatRecord renders a record as a JSON object keyed by column, preserving
// column order. Nodes are rendered as their property maps.
func formatRecord(record *neo4j.Record) string {
	var builder strings.Builder
	builder.WriteString("{")
	for i, key := range record.Keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		encodedKey, _ := json.Marshal(key)
		builder.Write(encodedKey)
		builder.WriteString(": ")
		builder.WriteString(encodeValue(plain(record.Values[i])))
	}
	builder.WriteString("}")
	return builder.String()
}

func encodeValue(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(value))
	}
	return string(encoded)
}

func plain(value any) any {
	switch v := value.(type) {
	case neo4j.Node:
		return plainMap(v.Props)
	case neo4j.Relationship:
		props := plainMap(v.Props)
		props["type"] = v.Type
		return props
	case neo4j.Path:
		nodes := make([]any, 0, len(v.Nodes))
		for _, node := range v.Nodes {
			nodes = append(nodes, plainMap(node.Props))
		}
		return nodes
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, plain(item))
		}
		return out
	case map[string]any:
		return plainMap(v)
	case nil, string, bool, int64, float64:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func plainMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = plain(v)
	}
	return out
}
