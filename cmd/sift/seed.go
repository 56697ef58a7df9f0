package main

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/poiesic/sift/core"
)

// scenarioDocuments are the three hand-written cars added after the corpus.
var scenarioDocuments = []*core.Document{
	{Id: 111111, Title: "Nissan almera", Desc: "passenger machine", Filters: []string{"filter1", "filter3"}},
	{Id: 222222, Title: "car", Desc: "Car2", Filters: []string{"filter1", "filter3"}},
	{Id: 333333, Title: "Carrera gt s", Desc: "super", Filters: []string{"filter2", "filter4"}},
}

// seedDocuments builds count synthetic documents with IDs 1..count followed
// by the scenario documents. IDs that collide with a scenario document are
// skipped. The same seed always yields the same corpus.
func seedDocuments(count int, seed uint64) []*core.Document {
	faker := gofakeit.New(seed)

	reserved := make(map[core.ID]struct{}, len(scenarioDocuments))
	for _, doc := range scenarioDocuments {
		reserved[doc.Id] = struct{}{}
	}

	docs := make([]*core.Document, 0, count+len(scenarioDocuments))
	for i := 1; i <= count; i++ {
		if _, ok := reserved[core.ID(i)]; ok {
			continue
		}
		docs = append(docs, &core.Document{
			Id:      core.ID(i),
			Title:   fmt.Sprintf("title title%d title%d title%d title%d", i, i%10, i%100, i%1000),
			Desc:    "desc " + randomWords(faker, 5, 30),
			Filters: []string{fmt.Sprintf("filter%d", i%10), fmt.Sprintf("filter%d", i%100)},
		})
	}

	for _, doc := range scenarioDocuments {
		clone := *doc
		clone.Filters = append([]string(nil), doc.Filters...)
		docs = append(docs, &clone)
	}
	return docs
}

// randomWords returns between lo and hi fake words joined by spaces.
func randomWords(faker *gofakeit.Faker, lo, hi int) string {
	n := faker.IntRange(lo, hi)
	words := make([]string, 0, n)
	for len(words) < n {
		words = append(words, strings.Fields(faker.Word())...)
	}
	return strings.Join(words[:n], " ")
}
