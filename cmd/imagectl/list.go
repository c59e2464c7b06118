package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"image-server/internal/domain"

	"github.com/spf13/cobra"
)

var (
	listPage     int
	listPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored images",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number, starting at 1")
	listCmd.Flags().IntVar(&listPageSize, "page-size", domain.DefaultPageSize, "images per page")
}

func runList(cmd *cobra.Command, args []string) error {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return err
	}

	page, err := images.ListImages(getContext(cmd), base, listPage, listPageSize)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No images found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tUPLOADED\tTHUMBNAIL")
	for _, v := range page.Items {
		thumb := "-"
		if v.ThumbnailURL != "" {
			thumb = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			v.ID, v.Name, v.ContentType, v.FileSize, v.UploadedAt.Format("2006-01-02 15:04:05"), thumb)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\npage %d, %d of %d images\n", page.Page, len(page.Items), page.Total)
	return nil
}

func parseBaseURL(raw string) (domain.BaseURL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return domain.BaseURL{}, fmt.Errorf("invalid --base-url %q", raw)
	}
	return domain.BaseURL{Scheme: u.Scheme, Host: u.Host}, nil
}
