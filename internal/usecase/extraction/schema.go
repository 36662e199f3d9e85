package extraction

import "github.com/sashabaranov/go-openai/jsonschema"

// SchemaName identifies the invoice schema to the provider.
const SchemaName = "invoice"

// Schema returns the strict JSON schema of an invoice. Money is a decimal
// string so that no binary float stands between the document and the record.
func Schema() *jsonschema.Definition {
	money := jsonschema.Definition{
		Type:        jsonschema.String,
		Description: `Decimal amount with a dot separator and no grouping, e.g. "1000.00"`,
	}

	item := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name": {Type: jsonschema.String, Description: "Product or service name"},
			"quantity": {
				Type:        jsonschema.Integer,
				Description: "Whole quantity, rounded when fractional",
			},
			"price": money,
		},
		Required:             []string{"name", "quantity", "price"},
		AdditionalProperties: false,
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"vendor_name":  {Type: jsonschema.String, Description: "Issuer of the invoice, never the buyer"},
			"invoice_date": {Type: jsonschema.String, Description: "Issue date, YYYY-MM-DD"},
			"items":        {Type: jsonschema.Array, Items: &item},
			"total_amount": money,
			"currency":     {Type: jsonschema.String, Description: "ISO 4217 currency code"},
		},
		Required:             []string{"vendor_name", "invoice_date", "items", "total_amount", "currency"},
		AdditionalProperties: false,
	}
}
