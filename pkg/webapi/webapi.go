package webapi

import (
	"context"
	"io"
	"log"
	"net/http"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/julienschmidt/httprouter"
	"github.com/tjstebbing/conductor"
)

// WebAPI implements conductor.Service
type WebAPI struct {
	resolver lineage.Resolver
	config   lineage.Config
	log      *log.Logger
}

// interface guard ensures WebAPI implements conductor.Service
var _ conductor.Service = WebAPI{}

// NewWebAPI serves resolver over HTTP. Request errors are written to
// logger (discarded when nil).
func NewWebAPI(config lineage.Config, resolver lineage.Resolver, logger *log.Logger) (WebAPI, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return WebAPI{resolver: resolver, config: config, log: logger}, nil
}

func (t WebAPI) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		server := &http.Server{Addr: t.config.WebAPI.Bind + ":" + t.config.WebAPI.Port, Handler: t.createRouter()}
		t.log.Printf("Lineage API listening on %s:%s", t.config.WebAPI.Bind, t.config.WebAPI.Port)
		go func() {
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				t.log.Fatalf("HTTP server ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		server.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

func (t WebAPI) createRouter() *httprouter.Router {
	mux := httprouter.New()

	// GET /coin/:coinID/children -> { children } coins created by spending coinID
	mux.GET("/coin/:coinID/children", t.getChildren)

	// GET /coin/:coinID/parents -> { parent, siblings } the coin that created coinID
	mux.GET("/coin/:coinID/parents", t.getParents)

	return mux
}

// CoinPublic is a coin as presented by the API, with its id and the
// amount in XCH alongside the raw mojo amount.
type CoinPublic struct {
	ID     lineage.CoinID     `json:"coin_id"`
	Coin   lineage.Coin       `json:"coin"`
	Amount lineage.CoinAmount `json:"amount"`
}

func coinPublic(c lineage.Coin) CoinPublic {
	return CoinPublic{ID: c.ID(), Coin: c, Amount: lineage.MojoToXCH(c.Amount)}
}

const (
	StatusOK       = "ok"
	StatusNotSpent = "not-spent"
	StatusNoParent = "no-parent"
)

type ChildrenResponse struct {
	CoinID        lineage.CoinID       `json:"coin_id"`
	Status        string               `json:"status"`
	Children      []CoinPublic         `json:"children"`
	Total         lineage.CoinAmount   `json:"total"`
	Commitments   []lineage.Commitment `json:"commitments"`
	Authenticated bool                 `json:"authenticated"`
}

func (t WebAPI) getChildren(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := lineage.Bytes32FromHex(p.ByName("coinID"))
	if err != nil {
		sendError(w, t.log, "coinID", err)
		return
	}
	res, err := t.resolver.Children(r.Context(), id)
	if lineage.IsNotSpentError(err) {
		sendResponse(w, t.log, ChildrenResponse{CoinID: id, Status: StatusNotSpent, Children: []CoinPublic{}, Total: lineage.ZeroCoins, Commitments: []lineage.Commitment{}})
		return
	}
	if err != nil {
		sendError(w, t.log, "Children", err)
		return
	}
	children := make([]CoinPublic, 0, len(res.Coins))
	for _, c := range res.Coins {
		children = append(children, coinPublic(c))
	}
	commitments := res.Commitments
	if commitments == nil {
		commitments = []lineage.Commitment{}
	}
	sendResponse(w, t.log, ChildrenResponse{
		CoinID:        id,
		Status:        StatusOK,
		Children:      children,
		Total:         res.Total(),
		Commitments:   commitments,
		Authenticated: res.Authenticated,
	})
}

type ParentsResponse struct {
	CoinID      lineage.CoinID       `json:"coin_id"`
	Status      string               `json:"status"`
	Parent      *CoinPublic          `json:"parent"`
	Siblings    []CoinPublic         `json:"siblings"`
	Total       lineage.CoinAmount   `json:"total"`
	Commitments []lineage.Commitment `json:"commitments"`
}

func (t WebAPI) getParents(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := lineage.Bytes32FromHex(p.ByName("coinID"))
	if err != nil {
		sendError(w, t.log, "coinID", err)
		return
	}
	res, err := t.resolver.Parents(r.Context(), id)
	if lineage.IsNoParentError(err) {
		sendResponse(w, t.log, ParentsResponse{CoinID: id, Status: StatusNoParent, Siblings: []CoinPublic{}, Total: lineage.ZeroCoins, Commitments: []lineage.Commitment{}})
		return
	}
	if err != nil {
		sendError(w, t.log, "Parents", err)
		return
	}
	parent := coinPublic(res.Parent.Coin)
	siblings := make([]CoinPublic, 0, len(res.Siblings))
	for _, rec := range res.Siblings {
		siblings = append(siblings, coinPublic(rec.Coin))
	}
	commitments := res.Commitments
	if commitments == nil {
		commitments = []lineage.Commitment{}
	}
	sendResponse(w, t.log, ParentsResponse{
		CoinID:      id,
		Status:      StatusOK,
		Parent:      &parent,
		Siblings:    siblings,
		Total:       res.Total(),
		Commitments: commitments,
	})
}
