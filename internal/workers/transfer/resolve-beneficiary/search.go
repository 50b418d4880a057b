package resolvebeneficiary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Searcher finds a user's saved beneficiaries by approximate name.
type Searcher interface {
	Search(ctx context.Context, userID, name string) ([]Match, error)
}

type ElasticsearchSearcher struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewElasticsearchSearcher(client *elasticsearch.Client, index string, size int) *ElasticsearchSearcher {
	if size <= 0 {
		size = 5
	}
	return &ElasticsearchSearcher{client: client, index: index, size: size}
}

type beneficiaryDoc struct {
	BeneficiaryID string `json:"beneficiaryId"`
	Name          string `json:"beneficiaryName"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source beneficiaryDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildQuery(userID, name string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"match": map[string]interface{}{
							"beneficiaryName": map[string]interface{}{
								"query":     name,
								"fuzziness": "AUTO",
							},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"userId": userID},
					},
				},
			},
		},
	}
}

func (s *ElasticsearchSearcher) Search(ctx context.Context, userID, name string) ([]Match, error) {
	body, err := json.Marshal(buildQuery(userID, name))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &s.size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("beneficiary search failed: %s", res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]Match, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id := hit.Source.BeneficiaryID
		if id == "" {
			id = hit.ID
		}
		matches = append(matches, Match{
			BeneficiaryID: id,
			Name:          hit.Source.Name,
			AccountNumber: hit.Source.AccountNumber,
			BankName:      hit.Source.BankName,
			Score:         hit.Score,
		})
	}
	return matches, nil
}
