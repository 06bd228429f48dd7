package steamtrade

type Filter func(*Item) bool

func IsTradable(cond bool) Filter {
	return func(item *Item) bool {
		return item.Tradable == cond
	}
}

func IsMarketable(cond bool) Filter {
	return func(item *Item) bool {
		return item.Marketable == cond
	}
}

func HasName(name string) Filter {
	return func(item *Item) bool {
		return item.Name == name
	}
}

func HasMarketHashName(name string) Filter {
	return func(item *Item) bool {
		return item.MarketHashName == name
	}
}

// All matches items accepted by every filter.
func All(filters ...Filter) Filter {
	return func(item *Item) bool {
		for _, filter := range filters {
			if !filter(item) {
				return false
			}
		}
		return true
	}
}
