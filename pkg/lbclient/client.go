// Client for the lovebeat REST API
package lbclient

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/function61/gokit/ezhttp"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/function61/lovebeat/pkg/lbtypes"
)

type Client struct {
	baseUrl string
}

func New(baseUrl string) *Client {
	return &Client{strings.TrimRight(baseUrl, "/")}
}

func (c *Client) Trigger(ctx context.Context, id string, req lbtypes.TriggerRequest) error {
	return c.postJson(ctx, "/s/"+url.PathEscape(id)+"/trigger", &req)
}

func (c *Client) Maint(ctx context.Context, id string, req lbtypes.MaintRequest) error {
	return c.postJson(ctx, "/s/"+url.PathEscape(id)+"/maint", &req)
}

func (c *Client) Unmaint(ctx context.Context, id string) error {
	return c.postJson(ctx, "/s/"+url.PathEscape(id)+"/unmaint", &struct{}{})
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.postJson(ctx, "/s/"+url.PathEscape(id)+"/delete", &struct{}{})
}

func (c *Client) Services(ctx context.Context, label string) ([]lbstate.ServiceView, error) {
	res := lbtypes.ServicesResponse{}
	if err := c.getJson(ctx, "/dashboard/"+url.PathEscape(label)+"/json", &res); err != nil {
		return nil, err
	}

	return res.Services, nil
}

func (c *Client) AlertFeed(ctx context.Context, agent string) ([]lbstate.FeedItem, error) {
	feed := []lbstate.FeedItem{}
	if err := c.getJson(ctx, "/agent/"+url.PathEscape(agent)+"/alerts.json", &feed); err != nil {
		return nil, err
	}

	return feed, nil
}

func (c *Client) Claim(ctx context.Context, agent string, id string, incidentId int64, status lbdomain.Status) (lbdomain.AgentResult, error) {
	return c.agentAction(ctx, "claim", agent, id, incidentId, status)
}

func (c *Client) Confirm(ctx context.Context, agent string, id string, incidentId int64, status lbdomain.Status) (lbdomain.AgentResult, error) {
	return c.agentAction(ctx, "confirm", agent, id, incidentId, status)
}

func (c *Client) agentAction(
	ctx context.Context,
	action string,
	agent string,
	id string,
	incidentId int64,
	status lbdomain.Status,
) (lbdomain.AgentResult, error) {
	res, err := ezhttp.Post(ctx, fmt.Sprintf(
		"%s/agent/%s/%s/%s/%d/%s",
		c.baseUrl,
		url.PathEscape(agent),
		action,
		url.PathEscape(id),
		incidentId,
		status))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	switch result := lbdomain.AgentResult(strings.TrimSpace(string(body))); result {
	case lbdomain.AgentOk, lbdomain.AgentAlreadyClaimed, lbdomain.AgentAlreadyConfirmed:
		return result, nil
	default:
		return "", fmt.Errorf("%s: unexpected response: %s", action, result)
	}
}

func (c *Client) postJson(ctx context.Context, path string, body interface{}) error {
	res, err := ezhttp.Post(ctx, c.baseUrl+path, ezhttp.SendJson(body))
	if err != nil {
		return err
	}

	return res.Body.Close()
}

func (c *Client) getJson(ctx context.Context, path string, out interface{}) error {
	res, err := ezhttp.Get(ctx, c.baseUrl+path)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	return jsonfile.Unmarshal(res.Body, out, true)
}
