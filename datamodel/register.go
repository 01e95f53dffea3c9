// Package datamodel contains the example record types of the toolkit,
// written the way a datamodel generator would emit them: one handle type,
// one fixed-width data struct, and one collection type per datatype, all
// built on the generic collection core.
//
// The package registers its schema-evolution chains, buffer factories, and
// collection makers at init time, so every datatype is known to the
// process-wide registries before any file is read.
package datamodel

import (
	"fmt"

	"github.com/hupe1980/eventio/collection"
	"github.com/hupe1980/eventio/model"
	"github.com/hupe1980/eventio/schema"
)

func recordsAs[D any](bufs schema.ReadBuffers, typeName string) ([]D, error) {
	records, ok := bufs.Records.([]D)
	if !ok {
		return nil, fmt.Errorf("datamodel: %s: unexpected record buffer type %T", typeName, bufs.Records)
	}
	return records, nil
}

func relationsOf(bufs schema.ReadBuffers, typeName string, n int) ([][]model.ObjectID, error) {
	if len(bufs.Relations) != n {
		return nil, fmt.Errorf("datamodel: %s: expected %d relation arrays, got %d", typeName, n, len(bufs.Relations))
	}
	return bufs.Relations, nil
}

func podFactory[D any](nRels int) schema.BufferFactory {
	return func(n int, relLens []int) schema.ReadBuffers {
		rels := make([][]model.ObjectID, nRels)
		for i := range rels {
			if i < len(relLens) {
				rels[i] = make([]model.ObjectID, relLens[i])
			}
		}
		return schema.ReadBuffers{Records: make([]D, n), Relations: rels}
	}
}

// evolveHitV1 evolves version-1 hit buffers (no CellID) to version 2. The
// cell id of evolved records is zero.
func evolveHitV1(bufs schema.ReadBuffers, _ model.SchemaVersion) (schema.ReadBuffers, error) {
	old, ok := bufs.Records.([]HitDataV1)
	if !ok {
		return schema.ReadBuffers{}, fmt.Errorf("datamodel: %s: unexpected v1 record buffer type %T", HitTypeName, bufs.Records)
	}
	records := make([]HitData, len(old))
	for i, d := range old {
		records[i] = HitData{X: d.X, Y: d.Y, Z: d.Z, Energy: d.Energy}
	}
	return schema.ReadBuffers{Records: records, Relations: bufs.Relations}, nil
}

func init() {
	reg := schema.Default()

	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("datamodel: registration failed: %v", err))
		}
	}

	// EventInfo: unevolved, registered no-op so the type is known.
	must(reg.RegisterEvolution(EventInfoTypeName, EventInfoSchemaVersion, EventInfoSchemaVersion, schema.NoOpEvolution, schema.AutoGenerated))
	must(reg.RegisterBuffers(EventInfoTypeName, EventInfoSchemaVersion, podFactory[EventInfoData](0)))
	must(collection.RegisterMaker(EventInfoTypeName, func(bufs schema.ReadBuffers) (collection.Base, error) {
		return EventInfoCollectionFrom(bufs)
	}))

	// Hit: version 2, with a real evolution from version 1.
	must(reg.RegisterEvolution(HitTypeName, 1, HitSchemaVersion, evolveHitV1, schema.AutoGenerated))
	must(reg.RegisterBuffers(HitTypeName, 1, podFactory[HitDataV1](0)))
	must(reg.RegisterBuffers(HitTypeName, HitSchemaVersion, podFactory[HitData](0)))
	must(collection.RegisterMaker(HitTypeName, func(bufs schema.ReadBuffers) (collection.Base, error) {
		return HitCollectionFrom(bufs)
	}))

	// Cluster: unevolved, one relation field.
	must(reg.RegisterEvolution(ClusterTypeName, ClusterSchemaVersion, ClusterSchemaVersion, schema.NoOpEvolution, schema.AutoGenerated))
	must(reg.RegisterBuffers(ClusterTypeName, ClusterSchemaVersion, podFactory[ClusterData](1)))
	must(collection.RegisterMaker(ClusterTypeName, func(bufs schema.ReadBuffers) (collection.Base, error) {
		return ClusterCollectionFrom(bufs)
	}))

	// ReferencingType: unevolved, two relation fields.
	must(reg.RegisterEvolution(ReferencingTypeName, ReferencingTypeSchemaVersion, ReferencingTypeSchemaVersion, schema.NoOpEvolution, schema.AutoGenerated))
	must(reg.RegisterBuffers(ReferencingTypeName, ReferencingTypeSchemaVersion, podFactory[ReferencingTypeData](2)))
	must(collection.RegisterMaker(ReferencingTypeName, func(bufs schema.ReadBuffers) (collection.Base, error) {
		return ReferencingTypeCollectionFrom(bufs)
	}))
}
