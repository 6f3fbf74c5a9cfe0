package testutil

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/firefly-engineering/skillctl/internal/expense"
	"github.com/firefly-engineering/skillctl/internal/orders"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// WriteFixture copies a fixture into dir and returns its path.
func WriteFixture(name, dir string) (string, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// SkillDoc renders the SKILL.md fixture for a skill.
func SkillDoc(name, description string) ([]byte, error) {
	data, err := LoadFixture("skill.md")
	if err != nil {
		return nil, err
	}
	doc := strings.NewReplacer("{{name}}", name, "{{description}}", description).Replace(string(data))
	return []byte(doc), nil
}

// SampleOrders loads the order fixture through orders.Load, duplicates
// included.
func SampleOrders(dir string) ([]orders.Order, error) {
	path, err := WriteFixture("orders.json", dir)
	if err != nil {
		return nil, err
	}
	return orders.Load(path, "")
}

// SampleExpenses loads the MoneyForward-style expense fixture.
func SampleExpenses(dir string) ([]expense.Expense, error) {
	path, err := WriteFixture("expenses.csv", dir)
	if err != nil {
		return nil, err
	}
	return expense.Load(path)
}
