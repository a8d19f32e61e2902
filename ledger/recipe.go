package ledger

import (
	"context"
	"sort"
)

// RecipeResolver expands a composite product into its direct ingredients.
// Expansion is one level deep: an ingredient that is itself recipe-based is
// returned as-is and not expanded further.
type RecipeResolver struct {
	Store CatalogStore
}

func NewRecipeResolver(store CatalogStore) *RecipeResolver {
	return &RecipeResolver{Store: store}
}

// Within returns a resolver reading from store.
func (r *RecipeResolver) Within(store CatalogStore) *RecipeResolver {
	return &RecipeResolver{Store: store}
}

// IngredientsFor returns the per-unit ingredient requirements of id, ordered
// by ingredient id. Products without recipes yield an empty slice.
func (r *RecipeResolver) IngredientsFor(ctx context.Context, id ProductID) ([]Ingredient, error) {
	recipes, err := r.Store.RecipesFor(ctx, id)
	if err != nil {
		return nil, Persist("load recipes", err)
	}
	out := make([]Ingredient, 0, len(recipes))
	for _, rc := range recipes {
		out = append(out, Ingredient{ProductID: rc.IngredientID, PerUnit: rc.QuantityNeeded})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
