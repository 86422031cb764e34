package domain

type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

var builtinTemplates = []Template{
	{
		ID:          "nda",
		Name:        "Mutual Non-Disclosure Agreement",
		Description: "Two-way confidentiality agreement.",
		Content:     "<h1>Mutual Non-Disclosure Agreement</h1><p>The parties agree to keep confidential information disclosed under this agreement private for a period of two years.</p>",
	},
	{
		ID:          "service-agreement",
		Name:        "Service Agreement",
		Description: "Scope, fees and term for a service engagement.",
		Content:     "<h1>Service Agreement</h1><p>The provider will deliver the services described below for the fees and term set out in this agreement.</p>",
	},
	{
		ID:          "offer-letter",
		Name:        "Offer Letter",
		Description: "Employment offer with start date and compensation.",
		Content:     "<h1>Offer Letter</h1><p>We are pleased to offer you the position described below, starting on the date set out in this letter.</p>",
	},
}

func Templates() []Template {
	out := make([]Template, len(builtinTemplates))
	copy(out, builtinTemplates)
	return out
}

func TemplateByID(id string) (Template, bool) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
