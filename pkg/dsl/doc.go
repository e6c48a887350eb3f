/*
Package dsl provides a fluent builder for constructing workflows in code.

It is the type-safe alternative to YAML or markdown workflow documents:
useful for tests, embedded tools, and programs that generate workflows
dynamically. The builder assembles a domain.Workflow; structural validation
still happens when the workflow is loaded into a registry (guide.New does
that for you).

Example:

	b := dsl.New("triage").Version("2")

	b.Deterministic("fetch").
		Exec("sh", "-c", "cat report.json").
		Returns("report", schema.String()).
		Go("classify")

	b.Model("classify", "Classify this report: ${report}").
		Extract("severity", schema.Enum("low", "high")).
		Choose("low", "high")

	b.Terminal("low")
	b.Terminal("high")

	wf, err := b.Build()
*/
package dsl
