package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/jewelry-concierge/server/internal/agent/model"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
)

const maxSearchResults = 10

type SearchProductsInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type SearchProductsOutput struct {
	Products []ProductSummary `json:"products"`
	Total    int              `json:"total"`
}

// ProductSummary is the compact product view returned to the model.
type ProductSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Material  string  `json:"material,omitempty"`
	Price     float64 `json:"price"`
	InStock   bool    `json:"in_stock"`
	Relevance float64 `json:"relevance,omitempty"`
}

func summarize(it model.CandidateItem) ProductSummary {
	return ProductSummary{
		ID:        it.Product.ID,
		Name:      it.Product.Name,
		Category:  it.Product.Category,
		Material:  it.Product.Material,
		Price:     it.Product.Price,
		InStock:   it.Product.InStock(),
		Relevance: it.Score,
	}
}

// NewSearchProductsTool searches the catalog through the retrieval pipeline
// with the customer's preferences applied.
func NewSearchProductsTool(r retrieval.Retriever, prefs *model.Preferences) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchProducts,
			Desc: "Search the jewelry catalog. Use it when the customer asks for something the catalog block does not cover. Returns ids, names, prices and availability.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "Search text, e.g. 'white gold earrings with pearls'. Category words like ring or necklace narrow the search.",
					Required: true,
				},
				"max_results": {
					Type: schema.Integer,
					Desc: "Maximum number of products to return (default 5, max 10)",
				},
			}),
		},
		func(ctx context.Context, in *SearchProductsInput) (*SearchProductsOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("query is required")
			}
			limit := in.MaxResults
			if limit <= 0 {
				limit = 5
			}
			limit = min(limit, maxSearchResults)

			res := r.Retrieve(ctx, retrieval.Query{Text: in.Query, Preferences: prefs, Limit: limit})
			out := &SearchProductsOutput{Products: make([]ProductSummary, 0, len(res.Items)), Total: res.Count}
			for _, it := range res.Items {
				out.Products = append(out.Products, summarize(it))
			}
			return out, nil
		},
	)
}

type GetProductDetailsInput struct {
	ProductID string `json:"product_id"`
}

// NewProductDetailsTool returns the full catalog record of one product.
func NewProductDetailsTool(catalog model.CatalogStore) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetProductDetails,
			Desc: "Get the full record of a product: description, design details, weight, stock. Use the exact id from search results or the catalog block.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id": {
					Type:     schema.String,
					Desc:     "Product id",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *GetProductDetailsInput) (*model.Product, error) {
			if in.ProductID == "" {
				return nil, fmt.Errorf("product_id is required")
			}
			return catalog.GetProduct(ctx, in.ProductID)
		},
	)
}
