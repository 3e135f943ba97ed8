package ranking

// Record flattens a result into the wire shape returned by the recommender:
// product fields plus ranking fields. Ranking fields win on name clashes.
func (r Result) Record() map[string]interface{} {
	out := r.Product.Fields()

	components := make(map[string]Component, len(r.Components))
	for f, c := range r.Components {
		components[string(f)] = c
	}

	out["sustainability_score"] = r.SustainabilityScore
	out["final_score"] = r.FinalScore
	out["component_scores"] = components
	out["tier"] = string(r.Tier)
	out["rank_position"] = r.Position
	out["is_primary_recommendation"] = r.IsPrimary
	out["has_promotion"] = r.HasPromotion
	out["discount_percent"] = r.DiscountPercent
	if r.PromotionReason != "" {
		out["promotion_reason"] = r.PromotionReason
	}
	out["preference_match"] = r.PreferenceMatch
	out["recommendation_reasons"] = r.Reasons
	return out
}

// Records flattens a list of results, keeping order.
func Records(results []Result) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, r.Record())
	}
	return out
}
