// Package schema provides the contract system for step inputs and outputs.
//
// It defines a simple type system with built-in types (string, int, float,
// bool, enum) and support for slices and custom validators. Schemas map field
// names to types and back the two contract variants:
//
//   - ValueContract checks structured output from deterministic handlers and
//     user input.
//   - ExtractionContract pulls typed fields out of raw model replies, either
//     the whole trimmed text (Text) or gjson paths into a JSON body
//     (Extraction).
//
// Basic usage:
//
//	contract := schema.Extraction(schema.Schema{
//	    "parity": schema.Enum("even", "odd"),
//	})
//
//	fields, err := contract.Validate(`{"parity": "odd"}`)
//	if err != nil {
//	    // contract violation: retryable, never a crash
//	}
//
// Schemas can be created programmatically or parsed from type declarations:
//
//	decls := map[string]string{
//	    "sum":    "int",
//	    "parity": "enum(even|odd)",
//	    "tags":   "[string]",
//	}
//
//	fields, err := schema.ParseTypeMap(decls)
//
// Custom validators cover domain-specific rules:
//
//	positiveInt := schema.Custom("positive_int", func(v any) error {
//	    i, ok := v.(int)
//	    if !ok {
//	        return fmt.Errorf("expected int")
//	    }
//	    if i <= 0 {
//	        return fmt.Errorf("must be positive")
//	    }
//	    return nil
//	})
package schema
