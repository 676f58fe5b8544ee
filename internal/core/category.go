package core

// Category is one of the fixed expense categories.
type Category string

const (
	Baby          Category = "Baby"
	Car           Category = "Car"
	Gas           Category = "Gas"
	EatingOut     Category = "EatingOut"
	Entertainment Category = "Entertainment"
	Groceries     Category = "Groceries"
	Insurance     Category = "Insurance"
	Medical       Category = "Medical"
	Miscellaneous Category = "Miscellaneous"
	Rent          Category = "Rent"
	Travel        Category = "Travel"
)

var allCategories = []Category{
	Baby, Car, Gas, EatingOut, Entertainment, Groceries,
	Insurance, Medical, Miscellaneous, Rent, Travel,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) IsValid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches s exactly against the known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}
