package services

import (
	"context"
	"fmt"
)

// Shared mock implementations for testing

type mockIDGenerator struct {
	sessionCounter  int
	inputCounter    int
	versionCounter  int
	resultCounter   int
	frontierCounter int
}

func (m *mockIDGenerator) GenerateSessionID() string {
	m.sessionCounter++
	return fmt.Sprintf("ss_test%d", m.sessionCounter)
}

func (m *mockIDGenerator) GenerateInputID() string {
	m.inputCounter++
	return fmt.Sprintf("si_test%d", m.inputCounter)
}

func (m *mockIDGenerator) GenerateVersionID() string {
	m.versionCounter++
	return fmt.Sprintf("sv_test%d", m.versionCounter)
}

func (m *mockIDGenerator) GenerateResultID() string {
	m.resultCounter++
	return fmt.Sprintf("sr_test%d", m.resultCounter)
}

func (m *mockIDGenerator) GenerateFrontierEntryID() string {
	m.frontierCounter++
	return fmt.Sprintf("sf_test%d", m.frontierCounter)
}

type mockTransactionManager struct{}

func (m *mockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Simply execute the function without actual transaction management
	return fn(ctx)
}
