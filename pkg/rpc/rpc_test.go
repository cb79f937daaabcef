package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/mock"
	"github.com/julienschmidt/httprouter"
)

// fakeNode answers the full node RPC endpoints from canned replies.
type fakeNode struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]int // remaining 503s per endpoint
	calls   map[string]int
	params  map[string]map[string]any
}

func newFakeNode(t *testing.T) (*fakeNode, *FullNode) {
	node := &fakeNode{
		replies: map[string]string{},
		fail:    map[string]int{},
		calls:   map[string]int{},
		params:  map[string]map[string]any{},
	}
	router := httprouter.New()
	router.POST("/:endpoint", node.handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return node, NewFullNodeWithClient(server.URL, server.Client(), 2, time.Millisecond, nil)
}

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	endpoint := p.ByName("endpoint")
	body, _ := io.ReadAll(r.Body)
	var params map[string]any
	json.Unmarshal(body, &params)

	n.mu.Lock()
	n.calls[endpoint]++
	n.params[endpoint] = params
	failing := n.fail[endpoint] > 0
	if failing {
		n.fail[endpoint]--
	}
	reply, found := n.replies[endpoint]
	n.mu.Unlock()

	if failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !found {
		reply = fmt.Sprintf(`{"success":false,"error":"no reply for %s"}`, endpoint)
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, reply)
}

func (n *fakeNode) count(endpoint string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[endpoint]
}

func (n *fakeNode) param(endpoint, key string) any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params[endpoint][key]
}

func testCoin() lineage.Coin {
	return lineage.Coin{ParentCoinInfo: mock.Hash(0xaa), PuzzleHash: mock.Hash(0xbb), Amount: 1000}
}

func coinJSON(c lineage.Coin) string {
	b, _ := json.Marshal(c)
	return string(b)
}

func TestGetCoinRecord(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_coin_record_by_name"] = fmt.Sprintf(`{"success":true,"coin_record":{"coin":%s,"confirmed_block_index":10,"spent_block_index":12,"coinbase":false,"timestamp":1700000000}}`, coinJSON(coin))

	rec, err := client.GetCoinRecord(context.Background(), coin.ID())
	if err != nil {
		t.Fatalf("GetCoinRecord: %v", err)
	}
	if rec.Coin != coin || rec.ConfirmedBlockIndex != 10 || rec.SpentBlockIndex != 12 {
		t.Fatalf("GetCoinRecord: unexpected record %+v", rec)
	}
	if node.param("get_coin_record_by_name", "name") != coin.ID().String() {
		t.Fatalf("GetCoinRecord: sent name %v, expected %s", node.param("get_coin_record_by_name", "name"), coin.ID())
	}
}

func TestGetCoinRecordMismatch(t *testing.T) {
	node, client := newFakeNode(t)
	node.replies["get_coin_record_by_name"] = fmt.Sprintf(`{"success":true,"coin_record":{"coin":%s,"confirmed_block_index":10,"spent_block_index":0,"coinbase":false,"timestamp":0}}`, coinJSON(testCoin()))
	_, err := client.GetCoinRecord(context.Background(), mock.Hash(0x01))
	if lineage.CodeOf(err) != lineage.LedgerInconsistency {
		t.Fatalf("expected ledger-inconsistency for the wrong coin, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	node, client := newFakeNode(t)
	ctx := context.Background()

	node.replies["get_coin_record_by_name"] = `{"success":false,"error":"Coin record 0x01 not found"}`
	_, err := client.GetCoinRecord(ctx, mock.Hash(0x01))
	if !lineage.IsNotFoundError(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	node.replies["get_block_record_by_height"] = `{"success":false,"error":"Height not in blockchain: 99"}`
	_, err = client.GetBlockRecord(ctx, 99)
	if !lineage.IsNotFoundError(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	node.replies["get_puzzle_and_solution"] = `{"success":true,"coin_solution":null}`
	_, err = client.GetPuzzleAndSolution(ctx, mock.Hash(0x01), 5)
	if !lineage.IsNotFoundError(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestNodeErrorNotRetried(t *testing.T) {
	node, client := newFakeNode(t)
	node.replies["get_block_record_by_height"] = `{"success":false,"error":"invalid request"}`
	_, err := client.GetBlockRecord(context.Background(), 1)
	if lineage.CodeOf(err) != lineage.NotAvailable {
		t.Fatalf("expected not-available, got %v", err)
	}
	if n := node.count("get_block_record_by_height"); n != 1 {
		t.Fatalf("node error was retried: %d calls", n)
	}
}

func TestRetry(t *testing.T) {
	node, client := newFakeNode(t)
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":7}}`, mock.Hash(0x07))
	node.fail["get_block_record_by_height"] = 2

	block, err := client.GetBlockRecord(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetBlockRecord after retries: %v", err)
	}
	if block.Height != 7 || block.HeaderHash != mock.Hash(0x07) {
		t.Fatalf("unexpected block %+v", block)
	}
	if n := node.count("get_block_record_by_height"); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}

	// retries exhausted
	node.fail["get_block_record_by_height"] = 3
	_, err = client.GetBlockRecord(context.Background(), 7)
	if lineage.CodeOf(err) != lineage.NotAvailable {
		t.Fatalf("expected not-available after retries, got %v", err)
	}
}

func TestAdditionsAndRemovals(t *testing.T) {
	node, client := newFakeNode(t)
	a := testCoin()
	b := lineage.Coin{ParentCoinInfo: mock.Hash(0xcc), PuzzleHash: mock.Hash(0xdd), Amount: 5}
	node.replies["get_additions_and_removals"] = fmt.Sprintf(`{"success":true,"additions":[{"coin":%s,"confirmed_block_index":3,"spent_block_index":0,"coinbase":true,"timestamp":0}],"removals":[{"coin":%s,"confirmed_block_index":1,"spent_block_index":3,"coinbase":false,"timestamp":0}]}`, coinJSON(a), coinJSON(b))

	adds, rems, err := client.GetAdditionsAndRemovals(context.Background(), mock.Hash(0x03))
	if err != nil {
		t.Fatalf("GetAdditionsAndRemovals: %v", err)
	}
	if len(adds) != 1 || adds[0].Coin != a || !adds[0].Coinbase {
		t.Fatalf("unexpected additions %+v", adds)
	}
	if len(rems) != 1 || rems[0].Coin != b || rems[0].SpentBlockIndex != 3 {
		t.Fatalf("unexpected removals %+v", rems)
	}
}

func blockSpendsReply(coin lineage.Coin, conditions string) string {
	return fmt.Sprintf(`{"success":true,"block_spends_with_conditions":[{"coin_spend":{"coin":%s,"puzzle_reveal":"0xff01","solution":"0x80"},"conditions":%s}]}`, coinJSON(coin), conditions)
}

func TestEvaluate(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":12}}`, mock.Hash(0x12))
	// opcodes as number and hex, CREATE_COIN with a memo
	node.replies["get_block_spends_with_conditions"] = blockSpendsReply(coin, fmt.Sprintf(
		`[{"opcode":51,"vars":["%s","0x03e8","0xabcd"]},{"opcode":"0x3c","vars":["68656c6c6f"]}]`, mock.Hash(0xee)))

	spend := lineage.CoinSpend{Coin: coin, PuzzleReveal: []byte{0xff, 0x01}, Solution: []byte{0x80}, Height: 12}
	conds, err := client.Evaluate(context.Background(), spend, 0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	set, err := lineage.NewConditionSet(conds)
	if err != nil {
		t.Fatalf("NewConditionSet: %v", err)
	}
	created, err := set.CreatedCoins(coin.ID())
	if err != nil {
		t.Fatalf("CreatedCoins: %v", err)
	}
	if len(created) != 1 || created[0].Amount != 1000 || created[0].PuzzleHash != mock.Hash(0xee) {
		t.Fatalf("unexpected created coins %+v", created)
	}
	msgs := set.Messages(lineage.CreateCoinAnnouncement)
	if len(msgs) != 1 || string(msgs[0]) != "hello" {
		t.Fatalf("unexpected announcement messages %q", msgs)
	}
	if node.param("get_block_spends_with_conditions", "header_hash") != mock.Hash(0x12).String() {
		t.Fatalf("block spends requested for the wrong header hash")
	}
}

func TestEvaluateSpendMismatch(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":12}}`, mock.Hash(0x12))
	node.replies["get_block_spends_with_conditions"] = blockSpendsReply(coin, `[]`)

	spend := lineage.CoinSpend{Coin: coin, PuzzleReveal: []byte{0x01}, Solution: []byte{0x80}, Height: 12}
	if _, err := client.Evaluate(context.Background(), spend, 0); err == nil {
		t.Fatalf("expected an error for a spend the node did not run")
	}
	other := lineage.CoinSpend{Coin: lineage.Coin{Amount: 1}, Height: 12}
	if _, err := client.Evaluate(context.Background(), other, 0); err == nil {
		t.Fatalf("expected an error for a coin not spent in the block")
	}
}

func TestScopeFetchesBlockOnce(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":12}}`, mock.Hash(0x12))
	node.replies["get_block_spends_with_conditions"] = blockSpendsReply(coin, `[]`)

	eval := client.Scope()
	spend := lineage.CoinSpend{Coin: coin, PuzzleReveal: []byte{0xff, 0x01}, Solution: []byte{0x80}, Height: 12}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eval.Evaluate(context.Background(), spend, 0); err != nil {
				t.Errorf("Evaluate: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := node.count("get_block_spends_with_conditions"); n != 1 {
		t.Fatalf("expected the block to be fetched once, got %d", n)
	}

	// a fresh scope fetches again
	client.Scope().Evaluate(context.Background(), spend, 0)
	if n := node.count("get_block_spends_with_conditions"); n != 2 {
		t.Fatalf("expected a second fetch from a new scope, got %d", n)
	}
}

func TestGetBlockSpends(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":12}}`, mock.Hash(0x12))
	node.replies["get_block_spends_with_conditions"] = blockSpendsReply(coin, fmt.Sprintf(`[{"opcode":51,"vars":["%s","0x64","0x01"]}]`, mock.Hash(0xee)))

	spends, err := client.GetBlockSpends(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetBlockSpends: %v", err)
	}
	if len(spends) != 1 || spends[0].Spend.Coin != coin || spends[0].Spend.Height != 12 {
		t.Fatalf("unexpected spends %+v", spends)
	}
	if len(spends[0].Conditions) != 1 || len(spends[0].Conditions[0].Args) != 2 {
		t.Fatalf("expected one CREATE_COIN without memo, got %+v", spends[0].Conditions)
	}
}

func TestEvaluateIgnoresCostLimit(t *testing.T) {
	node, client := newFakeNode(t)
	coin := testCoin()
	node.replies["get_block_record_by_height"] = fmt.Sprintf(`{"success":true,"block_record":{"header_hash":"%s","height":12}}`, mock.Hash(0x12))
	node.replies["get_block_spends_with_conditions"] = blockSpendsReply(coin, `[{"opcode":60,"vars":["0x01"]}]`)

	// the node already ran the spend within the block cost limit
	spend := lineage.CoinSpend{Coin: coin, PuzzleReveal: []byte{0xff, 0x01}, Solution: []byte{0x80}, Height: 12}
	conds, err := client.Scope().Evaluate(context.Background(), spend, 1)
	if err != nil || len(conds) != 1 {
		t.Fatalf("Evaluate with a tiny cost limit: %+v %v", conds, err)
	}
}
