// Command etym-crawler harvests etymology dictionary entries into a local
// cache of batch files.
//
// A run indexes every letter bucket of the site's search listing to learn
// its page count, wipes the cache directory, and then feeds every listing
// page through a bounded queue to a fixed worker pool. Workers fetch the word
// pages linked from each listing, extract term and text, and flush batches to
// uniquely named files. Configuration comes from etym-crawler.yaml and
// CRAWLER_* environment variables; see internal/config.
package main

import (
	"github.com/JakeFAU/etym-crawler/cmd"
)

func main() {
	cmd.Execute()
}
