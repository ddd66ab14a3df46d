package graphstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/graph"
	testutil "github.com/codegraph-labs/justify/test/util"
)

// Entity ingestion is out of this module's scope (SPEC_FULL.md §1), so
// tests seed rows directly via the raw *sql.DB testutil.SetupTestAdapter
// hands back alongside the Adapter.

func TestPostgresAdapter_EntityAndRelationshipReads(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"fn-a", "doThing", "src/a.ts", string(graph.KindFunction), 1, 10)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"fn-b", "callsThing", "src/b.ts", string(graph.KindFunction), 1, 10)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO relationships (from_id, to_id, kind) VALUES ($1, $2, $3)`,
		"fn-b", "fn-a", string(graph.RelCalls))
	require.NoError(t, err)

	entities, err := adapter.ListEntitiesByKind(ctx, graph.KindFunction)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	got, ok, err := adapter.GetEntity(ctx, "fn-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "doThing", got.Name)

	_, ok, err = adapter.GetEntity(ctx, "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)

	rels, err := adapter.GetRelationships(ctx, graph.RelCalls)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "fn-b", rels[0].FromID)

	byFile, err := adapter.GetByFile(ctx, "src/a.ts")
	require.NoError(t, err)
	require.Len(t, byFile, 1)
}

func TestPostgresAdapter_JustificationRoundTrip(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"fn-a", "doThing", "src/a.ts", string(graph.KindFunction), 1, 10)
	require.NoError(t, err)

	j := graph.Justification{
		JustificationID: graph.NewJustificationID("fn-a"),
		EntityID:        "fn-a",
		EntityKind:      graph.KindFunction,
		FilePath:        "src/a.ts",
		PurposeSummary:  "Does a thing.",
		ConfidenceScore: 0.8,
		Tags:            []string{"core"},
	}
	j.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, j))

	loaded, ok, err := adapter.GetJustification(ctx, "fn-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Does a thing.", loaded.PurposeSummary)
	require.Equal(t, []string{"core"}, loaded.Tags)
	require.Equal(t, 1, loaded.Version)

	// A second upsert bumps Version (spec.md §9 open question b).
	loaded.PurposeSummary = "Does a thing, revised."
	require.NoError(t, adapter.UpsertJustification(ctx, loaded))
	reloaded, ok, err := adapter.GetJustification(ctx, "fn-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, reloaded.Version)

	batch, err := adapter.GetJustifications(ctx, []string{"fn-a", "missing"})
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, adapter.DeleteJustification(ctx, "fn-a", ""))
	_, ok, err = adapter.GetJustification(ctx, "fn-a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPostgresAdapter_PendingClarificationsAndTextSearch(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	for _, id := range []string{"fn-x", "fn-y"} {
		_, err := db.ExecContext(ctx, `
			INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, id, "src/"+id+".ts", string(graph.KindFunction), 1, 10)
		require.NoError(t, err)
	}

	pending := graph.Justification{
		JustificationID:      graph.NewJustificationID("fn-x"),
		EntityID:             "fn-x",
		EntityKind:           graph.KindFunction,
		FilePath:             "src/fn-x.ts",
		PurposeSummary:       "Handles payment authorization retries.",
		ClarificationPending: true,
		PendingQuestions:     []graph.ClarificationQuestion{{ID: "q1", Text: "What feature does this belong to?", Category: "feature"}},
	}
	pending.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, pending))

	notPending := graph.Justification{
		JustificationID: graph.NewJustificationID("fn-y"),
		EntityID:        "fn-y",
		EntityKind:      graph.KindFunction,
		FilePath:        "src/fn-y.ts",
		PurposeSummary:  "Formats a currency amount for display.",
	}
	notPending.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, notPending))

	pendingList, err := adapter.GetPendingClarifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	require.Equal(t, "fn-x", pendingList[0].EntityID)

	results, err := adapter.TextSearch(ctx, "payment authorization", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fn-x", results[0].EntityID)
}
