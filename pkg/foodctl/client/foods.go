package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// StringList accepts either a JSON string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

func (l StringList) String() string {
	return strings.Join(l, ", ")
}

type FoodInfo struct {
	Name        string     `json:"name" yaml:"name"`
	Region      string     `json:"region" yaml:"region"`
	Description string     `json:"description" yaml:"description"`
	Ingredients StringList `json:"ingredients" yaml:"ingredients"`
	Related     []string   `json:"related,omitempty" yaml:"related,omitempty"`
}

type Food struct {
	ID string `json:"id" yaml:"id"`
	FoodInfo `yaml:",inline"`
}

type Pagination struct {
	Page       int  `json:"page" yaml:"page"`
	PerPage    int  `json:"per_page" yaml:"perPage"`
	Total      int  `json:"total" yaml:"total"`
	TotalPages int  `json:"total_pages" yaml:"totalPages"`
	HasNext    bool `json:"has_next" yaml:"hasNext"`
	HasPrev    bool `json:"has_prev" yaml:"hasPrev"`
}

type FoodPage struct {
	Foods      []Food     `json:"foods" yaml:"foods"`
	Pagination Pagination `json:"pagination" yaml:"pagination"`
}

type FoodSearchOptions struct {
	Query    string
	Region   string
	Page     int
	PerPage  int
	Language string
}

type FoodService struct {
	client *Client
}

func (c *Client) Foods() *FoodService {
	return &FoodService{client: c}
}

func (f *FoodService) Search(ctx context.Context, opts FoodSearchOptions) (*FoodPage, error) {
	params := url.Values{}
	if opts.Query != "" {
		params.Set("search", opts.Query)
	}
	if opts.Region != "" {
		params.Set("region", opts.Region)
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	endpoint := "foods/search"
	if encoded := params.Encode(); encoded != "" {
		endpoint = fmt.Sprintf("%s?%s", endpoint, encoded)
	}
	var page FoodPage
	if err := f.client.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (f *FoodService) Get(ctx context.Context, name, language string) (*FoodInfo, error) {
	endpoint := "food/" + url.PathEscape(name)
	if language != "" {
		endpoint += "?lang=" + url.QueryEscape(language)
	}
	var out struct {
		Food FoodInfo `json:"food"`
	}
	if err := f.client.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out.Food, nil
}
