package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pota/internal/core"
)

var (
	parksSearch    string
	parksCountry   string
	parksFavorites bool
	parksLimit     int
	parksOffset    int

	favoriteOff bool
)

var parksCmd = &cobra.Command{
	Use:   "parks",
	Short: "List parks in the park database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		svc, st, err := openService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		parks, err := svc.ListParks(ctx, core.ParkFilter{
			Search:        parksSearch,
			Country:       parksCountry,
			FavoritesOnly: parksFavorites,
			Limit:         parksLimit,
			Offset:        parksOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list parks")
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "REFERENCE\tNAME\tLOCATION\tGRID\tFAV")
		for _, p := range parks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				p.Reference, p.Name, deref(p.LocationDesc), gridString(p.Grid), favMark(p.IsFavorite))
		}
		return tw.Flush()
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <reference>",
	Short: "Mark a park as a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := openService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.SetFavorite(ctx, args[0], !favoriteOff); err != nil {
			return eris.Wrapf(err, "set favorite %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s favorite=%s\n", args[0], strconv.FormatBool(!favoriteOff))
		return nil
	},
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func gridString(g *core.GridSquare) string {
	if g == nil {
		return "-"
	}
	return g.String()
}

func favMark(fav int) string {
	if fav != 0 {
		return "*"
	}
	return ""
}

func init() {
	parksCmd.Flags().StringVarP(&parksSearch, "search", "s", "", "reference prefix or name fragment")
	parksCmd.Flags().StringVar(&parksCountry, "country", "", "country as it appears in the location")
	parksCmd.Flags().BoolVar(&parksFavorites, "favorites", false, "only favorite parks")
	parksCmd.Flags().IntVar(&parksLimit, "limit", 50, "maximum parks to list")
	parksCmd.Flags().IntVar(&parksOffset, "offset", 0, "parks to skip")

	favoriteCmd.Flags().BoolVar(&favoriteOff, "off", false, "clear the favorite flag instead")

	parksCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(parksCmd)
}
