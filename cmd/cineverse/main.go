package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/user/cineverse/internal/apiclient"
	"github.com/user/cineverse/internal/service"
	"github.com/user/cineverse/internal/tokenstore"
)

const usage = `用法:
  cineverse signup --email <邮箱> --password <密码> --username <用户名>
  cineverse login --email <邮箱> --password <密码>
  cineverse logout
  cineverse whoami
  cineverse browse                        从标准输入逐行读取搜索词
  cineverse like|dislike|save <电影ID>
  cineverse review <电影ID> --rating 1-5 [--comment 文本]

环境变量: CINEVERSE_API, CINEVERSE_HOME, CINEVERSE_PASSPHRASE`

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	app := newApp()
	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "signup":
		err = app.signup(ctx, args)
	case "login":
		err = app.login(ctx, args)
	case "logout":
		err = app.logout(ctx)
	case "whoami":
		err = app.whoami(ctx)
	case "browse":
		err = app.browse(ctx)
	case "like", "dislike", "save":
		err = app.toggle(ctx, command, args)
	case "review":
		err = app.review(ctx, args)
	default:
		fmt.Printf("未知命令: %s\n\n%s\n", command, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

type app struct {
	client *apiclient.Client
	store  *tokenstore.Store
}

func newApp() *app {
	home := getEnv("CINEVERSE_HOME", "")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("无法确定主目录: %v", err)
		}
		home = filepath.Join(dir, ".cineverse")
	}

	store := tokenstore.New(afero.NewOsFs(), filepath.Join(home, "credentials"), passphrase(home))
	client := apiclient.New(getEnv("CINEVERSE_API", "http://localhost:5005"), 15*time.Second)

	if creds, err := store.Load(); err != nil {
		log.Printf("⚠️  读取本地凭证失败，请重新登录: %v", err)
	} else if creds != nil && time.Now().Before(creds.ExpiresAt) {
		client.SetToken(creds.Token)
		client.OnRefresh = func(token string) {
			creds.Token = token
			if err := store.Save(*creds); err != nil {
				log.Printf("⚠️  保存续期 token 失败: %v", err)
			}
		}
	}
	return &app{client: client, store: store}
}

// passphrase 未配置时按本机信息派生，凭证文件换机器即失效
func passphrase(home string) string {
	if p := os.Getenv("CINEVERSE_PASSPHRASE"); p != "" {
		return p
	}
	host, _ := os.Hostname()
	return host + ":" + home
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("signup", pflag.ExitOnError)
	email := fs.String("email", "", "邮箱")
	password := fs.String("password", "", "密码（至少 6 位）")
	username := fs.String("username", "", "用户名（至少 3 位）")
	fs.Parse(args)

	profile, err := a.client.SignUp(ctx, *email, *password, *username)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 注册成功: %s (ID: %s)，请使用 login 登录\n", profile.Username, profile.ID)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ExitOnError)
	email := fs.String("email", "", "邮箱")
	password := fs.String("password", "", "密码")
	fs.Parse(args)

	sess, err := a.client.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.store.Save(tokenstore.Credentials{
		Token:     sess.Token,
		UserID:    sess.UserID,
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("保存凭证失败: %w", err)
	}
	fmt.Printf("✅ 已登录: %s\n", sess.Email)
	return nil
}

// logout 无论服务端是否成功，本地凭证都清空
func (a *app) logout(ctx context.Context) error {
	if a.client.Token() != "" {
		if err := a.client.SignOut(ctx); err != nil {
			log.Printf("⚠️  服务端登出失败: %v", err)
		}
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Println("✅ 已退出登录")
	return nil
}

func (a *app) requireLogin() error {
	if a.client.Token() == "" {
		return fmt.Errorf("尚未登录，请先执行 cineverse login")
	}
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	me, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	var liked, disliked, saved int
	for _, st := range me.Statuses {
		if st.Liked {
			liked++
		}
		if st.Disliked {
			disliked++
		}
		if st.Saved {
			saved++
		}
	}
	fmt.Println("─────────────────────────────────────")
	if me.Profile != nil {
		fmt.Printf("用户名: %s | ID: %s\n", me.Profile.Username, me.Profile.ID)
		if me.Profile.HasAvatar() {
			fmt.Printf("头像: %s\n", *me.Profile.AvatarURL)
		}
	}
	fmt.Printf("喜欢 %d | 不喜欢 %d | 收藏 %d\n", liked, disliked, saved)
	fmt.Println("─────────────────────────────────────")
	return nil
}

// browse 首屏显示热门，之后每行输入都经过防抖再搜索
func (a *app) browse(ctx context.Context) error {
	results := make(chan service.BrowseResult, 8)
	b := service.NewBrowser(a.client.Browse, service.DefaultDebounce, func(r service.BrowseResult) {
		select {
		case results <- r:
		default:
		}
	})
	defer b.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	last := ""
	waiting := true
	b.Load(last)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if !waiting {
					return nil
				}
				continue
			}
			last = strings.TrimSpace(line)
			waiting = true
			b.Input(last)
		case r := <-results:
			printResult(r)
			if r.Query == last {
				waiting = false
				if lines == nil {
					return nil
				}
			}
		}
	}
}

func printResult(r service.BrowseResult) {
	title := "🔥 热门"
	if r.Query != "" {
		title = fmt.Sprintf("🔍 %q", r.Query)
	}
	if r.Err != nil {
		fmt.Printf("%s: 加载失败: %v\n", title, r.Err)
		return
	}
	fmt.Printf("\n%s (%d)\n", title, len(r.Movies))
	for _, m := range r.Movies {
		fmt.Printf("  [%s] %s\n", m.ID, m.Title)
	}
}

func (a *app) toggle(ctx context.Context, action string, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("用法: cineverse %s <电影ID>", action)
	}
	status, err := a.client.Toggle(ctx, action, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("✅ [%s] 喜欢=%t 不喜欢=%t 收藏=%t\n", args[0], status.Liked, status.Disliked, status.Saved)
	return nil
}

func (a *app) review(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	fs := pflag.NewFlagSet("review", pflag.ExitOnError)
	rating := fs.Int("rating", 0, "评分 1-5")
	comment := fs.String("comment", "", "评论，可为空")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("用法: cineverse review <电影ID> --rating 1-5 [--comment 文本]")
	}

	review, err := a.client.PutReview(ctx, fs.Arg(0), *rating, *comment)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 已评分 %d/5 (电影 %s)\n", review.Rating, review.MovieID)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
