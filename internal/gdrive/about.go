package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

type aboutResponse struct {
	User struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
	StorageQuota struct {
		Limit string `json:"limit"`
		Usage string `json:"usage"`
	} `json:"storageQuota"`
}

// About returns the authenticated user and storage quota.
func (c *Client) About(ctx context.Context) (*About, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/about?fields=user(displayName,emailAddress),storageQuota(limit,usage)")
	if err != nil {
		return nil, fmt.Errorf("gdrive: fetching about: %w", err)
	}
	defer resp.Body.Close()

	var ar aboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("gdrive: decoding about response: %w", err)
	}

	// Quota values are int64 strings; limit is absent for unlimited plans.
	limit, _ := strconv.ParseInt(ar.StorageQuota.Limit, 10, 64)
	usage, _ := strconv.ParseInt(ar.StorageQuota.Usage, 10, 64)

	return &About{
		DisplayName:  ar.User.DisplayName,
		EmailAddress: ar.User.EmailAddress,
		QuotaLimit:   limit,
		QuotaUsage:   usage,
	}, nil
}
