package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateSessionID() string {
	return g.generate("ss")
}

func (g *Generator) GenerateInputID() string {
	return g.generate("si")
}

func (g *Generator) GenerateVersionID() string {
	return g.generate("sv")
}

func (g *Generator) GenerateResultID() string {
	return g.generate("sr")
}

func (g *Generator) GenerateFrontierEntryID() string {
	return g.generate("sf")
}
