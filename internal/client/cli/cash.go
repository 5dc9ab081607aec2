package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/cashkeeper/internal/client/client"
)

// Cash fetches and prints the reconciled balances.
func (a *App) Cash(ctx context.Context) error {
	values, err := a.api.Cash(ctx)
	if err != nil {
		if errors.Is(err, client.ErrMailUnavailable) {
			fmt.Fprintln(a.out, "Mail account is not authorised on the server yet")
		}
		return err
	}

	if len(values) == 0 {
		fmt.Fprintln(a.out, "No balances")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PROVIDER\tCURRENCY\tVALUE\t")
	for _, v := range values {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", v.Provider, v.CurrencyTitle, v.Value.StringFixed(2))
	}
	return tw.Flush()
}
