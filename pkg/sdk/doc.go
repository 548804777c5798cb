// Package kongrag embeds the kongrag retrieval pipeline in a Go program
// without the CLI or the HTTP server.
//
// A Client owns one vector store (a local SQLite file, Redis or Valkey) and
// one chunk table. Documents are chunked, embedded and appended; questions
// are answered from the nearest chunks.
//
//	client, _ := kongrag.New(ctx,
//	    kongrag.WithSQLite("db/kongrag.sqlite"),
//	    kongrag.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	_, _ = client.IngestFile(ctx, "data/kong.txt")
//	answer, _ := client.Ask(ctx, "孔乙己说过哪些之乎者也？")
//	fmt.Println(answer.Text)
//
// Custom providers plug in through WithEmbedder and WithChatModel.
package kongrag
