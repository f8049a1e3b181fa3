package assets

import (
	"github.com/google/uuid"

	"github.com/gogpu/framegraph/material"
	"github.com/gogpu/framegraph/mesh"
)

// Primitive pairs a mesh with the material instance it is drawn with.
type Primitive struct {
	Mesh     mesh.Handle
	Instance material.InstanceHandle
}

// Model is a drawable made of primitives. The id keeps draws of one model
// adjacent after sorting.
type Model struct {
	ID         uuid.UUID
	Name       string
	Primitives []Primitive
}

// NewModel returns an empty model with a fresh id.
func NewModel(name string) *Model {
	return &Model{ID: uuid.New(), Name: name}
}

// Add appends a primitive and returns m.
func (m *Model) Add(mesh mesh.Handle, instance material.InstanceHandle) *Model {
	m.Primitives = append(m.Primitives, Primitive{Mesh: mesh, Instance: instance})
	return m
}
