package categorize

import (
	"regexp"

	"github.com/yakoovad/finflow/internal/model"
)

type rule struct {
	pattern  *regexp.Regexp
	category model.TransactionCategory
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{regexp.MustCompile(`(?i)payroll|salary|direct dep|deposit|stripe payout|invoice paid|refund`), model.CategoryIncome},
	{regexp.MustCompile(`(?i)gusto|adp |paychex|wages`), model.CategorySalary},
	{regexp.MustCompile(`(?i)\birs\b|\btax(es)?\b|hmrc|skatteverket`), model.CategoryTaxes},
	{regexp.MustCompile(`(?i)transfer|\bwire\b|zelle|venmo|\bwise\b`), model.CategoryTransfer},
	{regexp.MustCompile(`(?i)airline|airways|delta|united|lufthansa|ryanair|uber|lyft|taxi|hotel|airbnb|booking\.com|expedia|\btrain\b|amtrak`), model.CategoryTravel},
	{regexp.MustCompile(`(?i)restaurant|cafe|coffee|starbucks|mcdonald|doordash|grubhub|deliveroo|pizza|burger|sushi`), model.CategoryMeals},
	{regexp.MustCompile(`(?i)github|\baws\b|amazon web services|google cloud|gcp|heroku|vercel|slack|notion|figma|atlassian|adobe|microsoft|openai|zoom|dropbox`), model.CategorySoftware},
	{regexp.MustCompile(`(?i)\brent\b|lease|wework|regus|landlord`), model.CategoryRent},
	{regexp.MustCompile(`(?i)comcast|verizon|at&t|t-mobile|vodafone|internet|telephone|phone bill|broadband`), model.CategoryInternetAndTelephone},
	{regexp.MustCompile(`(?i)staples|office depot|stationery|paper|printer ink|office supplies`), model.CategoryOfficeSupplies},
	{regexp.MustCompile(`(?i)apple store|best buy|dell|lenovo|hardware|equipment`), model.CategoryEquipment},
	{regexp.MustCompile(`(?i)electric|utility|utilities|water bill|cleaning|janitor|maintenance`), model.CategoryFacilitiesExpenses},
	{regexp.MustCompile(`(?i)gym|event|conference|ticket|meetup`), model.CategoryActivity},
}

// Categorize picks a category from the transaction name and merchant. No match yields OTHER.
func Categorize(name, merchant string) model.TransactionCategory {
	for _, r := range rules {
		if r.pattern.MatchString(name) || (merchant != "" && r.pattern.MatchString(merchant)) {
			return r.category
		}
	}
	return model.CategoryOther
}
