package classify_test

import (
	"fmt"

	"docpipe/internal/classify"
)

// ExampleParseResponse shows how a category claim outside the candidate list
// is downgraded.
func ExampleParseResponse() {
	categories := []classify.Category{{ID: "folder-1", Name: "Invoices"}}

	ok, _ := classify.ParseResponse("```json\n{\"category\":\"Invoices\",\"confidence\":0.95,\"reasoning\":\"Invoice number present\"}\n```", categories)
	fmt.Println(*ok.CategoryName, *ok.CategoryFolderID, ok.Confidence)

	unknown, _ := classify.ParseResponse(`{"category":"Receipts","confidence":0.9,"reasoning":"r"}`, categories)
	fmt.Println(unknown.Matched(), unknown.Confidence, unknown.Reasoning)
	// Output:
	// Invoices folder-1 0.95
	// false 0 Category "Receipts" did not match any known category
}
