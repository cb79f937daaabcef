package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/webapi"
)

/*
	Remote queries call the HTTP API of a running `lineage serve`
	rather than resolving against the ledger directly.
*/

// work out the remote API URL from args or config and return
// a complete path with our best guess
func apiURL(c lineage.Config, s SubCommandArgs, path string) (string, error) {
	base := s.Remote
	if base == "" {
		host := c.WebAPI.Bind
		if host == "" {
			host = "localhost"
		}
		base = fmt.Sprintf("http://%s:%s/", host, c.WebAPI.Port)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	p, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return u.ResolveReference(p).String(), nil
}

type remoteError struct {
	Error struct {
		Code    lineage.ErrorCode `json:"code"`
		Message string            `json:"message"`
	} `json:"error"`
}

// getJSON fetches url and decodes the reply into out, turning API error
// replies back into lineage errors.
func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return lineage.WrapErr(lineage.NotAvailable, err, "failed to send HTTP request")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return lineage.WrapErr(lineage.NotAvailable, err, "failed to read HTTP response")
	}
	if resp.StatusCode != http.StatusOK {
		var e remoteError
		if json.Unmarshal(body, &e) == nil && e.Error.Code != "" {
			return lineage.NewErr(e.Error.Code, "%s", e.Error.Message)
		}
		return lineage.NewErr(lineage.NotAvailable, "unexpected response status code: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("bad json from %s: %v", url, err)
	}
	return nil
}

func remoteChildren(coin string, conf lineage.Config, args SubCommandArgs) error {
	url, err := apiURL(conf, args, fmt.Sprintf("coin/%s/children", coin))
	if err != nil {
		return err
	}
	var res webapi.ChildrenResponse
	if err := getJSON(url, &res); err != nil {
		return queryError("children of", coin, err)
	}
	if res.Status == webapi.StatusNotSpent {
		fmt.Printf("Coin %s is unspent: it has no children yet.\n", res.CoinID)
		return nil
	}
	rows := make([]coinRow, 0, len(res.Children))
	for _, c := range res.Children {
		rows = append(rows, coinRow{c.ID, c.Coin.Amount})
	}
	fmt.Printf("Children of %s:\n", res.CoinID)
	printCoins(rows)
	return nil
}

func remoteParents(coin string, conf lineage.Config, args SubCommandArgs) error {
	url, err := apiURL(conf, args, fmt.Sprintf("coin/%s/parents", coin))
	if err != nil {
		return err
	}
	var res webapi.ParentsResponse
	if err := getJSON(url, &res); err != nil {
		return queryError("parents of", coin, err)
	}
	if res.Status == webapi.StatusNoParent || res.Parent == nil {
		fmt.Printf("Coin %s has no parent (farming reward or genesis coin).\n", res.CoinID)
		return nil
	}
	rows := []coinRow{{res.Parent.ID, res.Parent.Coin.Amount}}
	for _, c := range res.Siblings {
		rows = append(rows, coinRow{c.ID, c.Coin.Amount})
	}
	fmt.Printf("Parents of %s:\n", res.CoinID)
	printCoins(rows)
	return nil
}
