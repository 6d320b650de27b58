package indexer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// sampleDocument is a built-in policy document for demos and smoke tests.
type sampleDocument struct {
	ID      string
	Content string
}

var sampleDocuments = []sampleDocument{
	{
		ID: "vacation_policy",
		Content: `Company Vacation Policy

All full-time employees are entitled to 15 days of paid vacation per year.
Vacation days accrue at a rate of 1.25 days per month.
Employees must request vacation at least 2 weeks in advance.
Vacation requests should be submitted through the HR portal.
Unused vacation days cannot be carried over to the next year.
Maximum vacation that can be taken at once is 10 consecutive days.
Part-time employees receive prorated vacation based on hours worked.
`,
	},
	{
		ID: "expense_policy",
		Content: `Expense Reimbursement Policy

Employees can be reimbursed for business-related expenses.
All expenses must be submitted within 30 days with receipts.
Meals are reimbursed up to $50 per day during business travel.
Transportation costs for business trips are fully covered.
Hotel accommodation is covered up to $200 per night.
Submit expense reports through the finance portal at finance.company.com.
Approval from manager required for expenses over $500.
Personal expenses will not be reimbursed under any circumstances.
`,
	},
	{
		ID: "it_support",
		Content: `IT Support Guidelines

For technical issues, contact IT support at it-help@company.com
For urgent issues, call the IT hotline: (555) 123-4567
Common issues can be resolved through the self-service portal.
New equipment requests should be submitted through IT portal.
Software installation requires IT approval for security reasons.
Password resets can be done through the company portal.
VPN access is required for remote work - contact IT for setup.
Regular security training is mandatory for all employees.
`,
	},
	{
		ID: "remote_work",
		Content: `Remote Work Policy

Employees can work remotely up to 3 days per week.
Remote work must be pre-approved by direct manager.
All remote workers must have reliable internet connection.
Company will provide necessary equipment for home office setup.
Remote workers must be available during core hours 10am-3pm EST.
Monthly in-person team meetings are required.
Productivity metrics will be tracked for remote workers.
Remote work privileges can be revoked for performance issues.
`,
	},
}

// SampleIDs returns the document IDs LoadSamples ingests.
func SampleIDs() []string {
	ids := make([]string, len(sampleDocuments))
	for i, d := range sampleDocuments {
		ids[i] = d.ID
	}
	return ids
}

// LoadSamples writes the built-in policy documents into dir as <id>.txt and
// ingests them under their IDs. Files already on disk with the same content
// are left untouched, so a second call skips them.
func (idx *Indexer) LoadSamples(ctx context.Context, dir string) (Summary, error) {
	var sum Summary
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return sum, fmt.Errorf("absolute path: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return sum, fmt.Errorf("failed to create sample directory: %w", err)
	}
	for _, doc := range sampleDocuments {
		path := filepath.Join(absDir, doc.ID+".txt")
		if existing, err := os.ReadFile(path); err != nil || !bytes.Equal(existing, []byte(doc.Content)) {
			if err := os.WriteFile(path, []byte(doc.Content), 0644); err != nil {
				return sum, fmt.Errorf("failed to write sample %s: %w", doc.ID, err)
			}
		}
		res, err := idx.indexFile(ctx, path, doc.ID)
		if err != nil {
			return sum, fmt.Errorf("failed to index sample %s: %w", doc.ID, err)
		}
		sum.add(res)
	}
	return sum, nil
}
