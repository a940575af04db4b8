package domain

// SeedTemplates returns the agents installed on first run.
// Both carry createdAt = now.
func SeedTemplates(now int64) []Agent {
	return []Agent{
		{
			ID:                "1",
			Name:              "Code Mentor",
			Description:       "A friendly programming assistant focused on best practices.",
			SystemInstruction: `You are an expert software engineer mentor. Your goal is to help students learn coding by explaining concepts clearly, providing examples, and encouraging clean code. Always explain the "why" behind your suggestions.`,
			Model:             ModelPro,
			Icon:              "💻",
			CreatedAt:         now,
		},
		{
			ID:                "2",
			Name:              "Travel Guide",
			Description:       "Personalized travel planning and local secrets.",
			SystemInstruction: "You are a world-class travel guide. You know hidden gems, local customs, and the best times to visit any location. Provide detailed itineraries and practical tips for travelers.",
			Model:             ModelFlash,
			Icon:              "🌍",
			CreatedAt:         now,
		},
	}
}
