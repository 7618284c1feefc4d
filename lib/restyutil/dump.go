package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// DumpExchanges writes every completed request and its response to output, files are named
// by the order in which responses arrive. A nil output leaves the client untouched.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(fmt.Sprintf("%03d.txt", id), formatExchange(res))
		return nil
	})
}
