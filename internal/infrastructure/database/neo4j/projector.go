package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
)

const (
	// Replaces the compound edges of one Rhea reaction.
	projectRheaCypher = `
MERGE (r:Reaction {rhea_id: $rhea_id})
SET r.updated_at = $timestamp
WITH r
OPTIONAL MATCH (r)-[old:INVOLVES]->(:Compound)
DELETE old
WITH DISTINCT r
UNWIND $compounds AS cp
MERGE (c:Compound {chebi_id: cp.chebi_id})
SET c.name = cp.name
MERGE (r)-[:INVOLVES]->(c)`

	linkEnzymeCypher = `
MATCH (r:Reaction {rhea_id: $rhea_id})
OPTIONAL MATCH (:Enzyme)-[old:CATALYZES]->(r)
DELETE old
WITH DISTINCT r
MERGE (e:Enzyme {ecnumber: $ecnumber})
MERGE (e)-[:CATALYZES]->(r)`

	unlinkEnzymeCypher = `
MATCH (:Enzyme)-[old:CATALYZES]->(:Reaction {rhea_id: $rhea_id})
DELETE old`

	// Replaces the ENZYME equations of one EC number. Equation nodes are
	// keyed "<ec>#rxn_<n>" so a re-run overwrites instead of accumulating.
	projectEnzymeCypher = `
MERGE (e:Enzyme {ecnumber: $ecnumber})
SET e.description = $description, e.updated_at = $timestamp
WITH e
OPTIONAL MATCH (e)-[:HAS_EQUATION]->(old:Equation)
DETACH DELETE old
WITH DISTINCT e
UNWIND $equations AS eq
CREATE (x:Equation {key: eq.key, text: eq.text, unresolved: eq.unresolved})
MERGE (e)-[:HAS_EQUATION]->(x)
WITH x, eq
UNWIND eq.participants AS p
MERGE (c:Compound {chebi_id: p.chebi_id})
FOREACH (_ IN CASE WHEN p.side = 'left' THEN [1] ELSE [] END |
  MERGE (x)-[:CONSUMES {name: p.name}]->(c))
FOREACH (_ IN CASE WHEN p.side = 'right' THEN [1] ELSE [] END |
  MERGE (x)-[:PRODUCES {name: p.name}]->(c))
RETURN count(*)`

	compoundReactionsCypher = `
MATCH (c:Compound {chebi_id: $chebi_id})<-[:INVOLVES]-(r:Reaction)
OPTIONAL MATCH (e:Enzyme)-[:CATALYZES]->(r)
RETURN r.rhea_id AS rhea_id, e.ecnumber AS ecnumber
ORDER BY size(r.rhea_id), r.rhea_id
LIMIT $limit`
)

// GraphWriter is the part of Driver the projector needs.
type GraphWriter interface {
	ExecuteRead(ctx context.Context, work TransactionWork) (any, error)
	ExecuteWrite(ctx context.Context, work TransactionWork) (any, error)
}

// CompoundReaction is one Rhea reaction that involves a compound.
type CompoundReaction struct {
	RheaID   string `json:"rhea_id"`
	ECNumber string `json:"ecnumber,omitempty"`
}

// GraphProjector is the graph sink.
type GraphProjector struct {
	graph  GraphWriter
	logger logging.Logger
}

var _ reaction.Sink = (*GraphProjector)(nil)

func NewGraphProjector(graph GraphWriter, log logging.Logger) *GraphProjector {
	return &GraphProjector{graph: graph, logger: log}
}

func (p *GraphProjector) Name() string { return "neo4j" }

// RheaUpserted projects the reaction, its compounds and its EC link. An
// unmapped reaction loses any previous CATALYZES edge.
func (p *GraphProjector) RheaUpserted(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	compounds := make([]map[string]any, 0, len(rec.ChEBI))
	for _, id := range rec.ChEBIIDs() {
		compounds = append(compounds, map[string]any{"chebi_id": id, "name": rec.ChEBI[id]})
	}

	_, err := p.graph.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		if err := run(ctx, tx, projectRheaCypher, map[string]any{
			"rhea_id":   rec.RheaID,
			"timestamp": rec.Timestamp.Format(reaction.TimestampLayout),
			"compounds": compounds,
		}); err != nil {
			return nil, err
		}
		if ec, ok := rec.ECNumber.Get(); ok {
			return nil, run(ctx, tx, linkEnzymeCypher, map[string]any{"rhea_id": rec.RheaID, "ecnumber": ec})
		}
		return nil, run(ctx, tx, unlinkEnzymeCypher, map[string]any{"rhea_id": rec.RheaID})
	})
	if err != nil {
		return err
	}
	p.logger.Debug("rhea reaction projected", logging.RheaID(rec.RheaID), logging.Int("compounds", len(compounds)))
	return nil
}

// EnzymeUpserted projects the enzyme and its equations. Unresolved
// constituents are kept on the Equation node count only; the graph has no
// node for a name without a ChEBI id.
func (p *GraphProjector) EnzymeUpserted(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	params := map[string]any{
		"ecnumber":    rec.ECNumber,
		"description": rec.Description,
		"timestamp":   rec.Timestamp.Format(reaction.TimestampLayout),
		"equations":   equationParams(rec),
	}
	_, err := p.graph.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		return nil, run(ctx, tx, projectEnzymeCypher, params)
	})
	if err != nil {
		return err
	}
	p.logger.Debug("enzyme projected", logging.ECNumber(rec.ECNumber), logging.Int("equations", len(rec.Reactions)))
	return nil
}

func equationParams(rec *reaction.ExpasyEnzymeRecord) []map[string]any {
	out := make([]map[string]any, 0, len(rec.Reactions))
	for _, rx := range rec.Reactions {
		participants := make([]map[string]any, 0, len(rx.Left)+len(rx.Right))
		add := func(side string, cs []reaction.Constituent) {
			for _, c := range cs {
				if id, ok := c.ChEBI.Get(); ok {
					participants = append(participants, map[string]any{"side": side, "name": c.Name, "chebi_id": id})
				}
			}
		}
		add("left", rx.Left)
		add("right", rx.Right)
		out = append(out, map[string]any{
			"key":          fmt.Sprintf("%s#%s", rec.ECNumber, rx.Key()),
			"text":         rx.Text,
			"unresolved":   rx.Unresolved(),
			"participants": participants,
		})
	}
	return out
}

// CompoundReactions lists Rhea reactions that involve chebiID.
func (p *GraphProjector) CompoundReactions(ctx context.Context, chebiID string, limit int) ([]CompoundReaction, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := p.graph.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		result, err := tx.Run(ctx, compoundReactionsCypher, map[string]any{"chebi_id": chebiID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, recordToCompoundReaction)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := res.([]CompoundReaction)
	return rows, nil
}

func recordToCompoundReaction(rec *neo4j.Record) (CompoundReaction, error) {
	var out CompoundReaction
	if v, ok := rec.Get("rhea_id"); ok {
		out.RheaID, _ = v.(string)
	}
	if v, ok := rec.Get("ecnumber"); ok && v != nil {
		out.ECNumber, _ = v.(string)
	}
	if out.RheaID == "" {
		return out, fmt.Errorf("neo4j: record without rhea_id")
	}
	return out, nil
}

func run(ctx context.Context, tx Transaction, cypher string, params map[string]any) error {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}
