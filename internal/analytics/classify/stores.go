package classify

import (
	"strings"

	"fieldops-workers/internal/models"
)

type Chain string

const (
	SevenEleven Chain = "7-eleven"
	CircleK     Chain = "circle-k"
	Wawa        Chain = "wawa"
	Other       Chain = "other"
)

// ChainKeywords are matched as substrings of the lower-cased customer name, in
// the order the chains are listed.
var ChainKeywords = []struct {
	Chain    Chain
	Keywords []string
}{
	{SevenEleven, []string{"7-eleven", "7 eleven", "seven eleven"}},
	{CircleK, []string{"circle k", "circle-k"}},
	{Wawa, []string{"wawa"}},
}

func ChainOf(name string) Chain {
	lower := strings.ToLower(name)
	for _, entry := range ChainKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Chain
			}
		}
	}
	return Other
}

type StoreCount struct {
	Name  string `json:"name"`
	Chain Chain  `json:"chain"`
	Count int    `json:"count"`
}

// StoreDistribution counts orders per chain and per store display name.
// Stores are listed in the order they first appear in the input.
type StoreDistribution struct {
	Chains map[Chain]int `json:"chains"`
	Stores []StoreCount  `json:"stores"`
}

func Stores(orders []models.WorkOrder) StoreDistribution {
	dist := StoreDistribution{
		Chains: map[Chain]int{SevenEleven: 0, CircleK: 0, Wawa: 0, Other: 0},
		Stores: []StoreCount{},
	}
	index := make(map[string]int)
	for _, o := range orders {
		chain := ChainOf(o.CustomerName)
		dist.Chains[chain]++

		name := o.DisplayName()
		if i, ok := index[name]; ok {
			dist.Stores[i].Count++
			continue
		}
		index[name] = len(dist.Stores)
		dist.Stores = append(dist.Stores, StoreCount{Name: name, Chain: chain, Count: 1})
	}
	return dist
}
